package registry

// schemaSQL mirrors the teacher pack's SQL task-service schema shape
// (kadirpekel-hector's pkg/agent/task_service_sql.go createTableSQL):
// indexed columns alongside a TEXT blob for the full JSON document, so
// list queries filter via the indexed columns instead of deserializing
// every row (spec §4.8 "sublinear in catalog size").
const schemaSQL = `
CREATE TABLE IF NOT EXISTS agent_cards (
    uuid        TEXT PRIMARY KEY,
    hri         TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    has_tee     INTEGER NOT NULL DEFAULT 0,
    tee_type    TEXT NOT NULL DEFAULT '',
    card_json   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_cards_name ON agent_cards(name);
CREATE INDEX IF NOT EXISTS idx_agent_cards_has_tee ON agent_cards(has_tee);
CREATE INDEX IF NOT EXISTS idx_agent_cards_tee_type ON agent_cards(tee_type);

CREATE TABLE IF NOT EXISTS agent_card_tags (
    card_uuid TEXT NOT NULL REFERENCES agent_cards(uuid) ON DELETE CASCADE,
    tag       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_card_tags_tag ON agent_card_tags(tag);
CREATE INDEX IF NOT EXISTS idx_agent_card_tags_card_uuid ON agent_card_tags(card_uuid);
`
