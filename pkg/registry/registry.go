// Package registry implements the read-only Agent Card catalog (spec
// §4.8): a sqlite-backed store whose tag and TEE filters run on indexed
// columns (the name/description search scans rows), generalizing the teacher's
// pkg/agent/task_service_sql.go database/sql + go-sqlite3 pattern onto
// Agent Card documents instead of tasks.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentvault/a2a-core/pkg/card"
)

// Config controls Registry construction.
type Config struct {
	// DataSourceName is the sqlite3 DSN, e.g. "file:catalog.db?cache=shared"
	// or ":memory:" for ephemeral/test catalogs.
	DataSourceName string
}

// Registry is the sqlite-backed Agent Card catalog.
type Registry struct {
	db *sql.DB
}

// New opens (creating if absent) the catalog database and ensures its
// schema exists, mirroring the teacher's NewSQLTaskServiceFromConfig
// open-then-initSchema sequence.
func New(cfg Config) (*Registry, error) {
	if cfg.DataSourceName == "" {
		return nil, fmt.Errorf("registry: DataSourceName is required")
	}
	db, err := sql.Open("sqlite3", cfg.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("registry: open database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver does not support concurrent writers

	r := &Registry{db: db}
	if err := r.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("registry: init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Put inserts or replaces ac under uuid, normalizing the HRI to lowercase
// for its unique index (spec §4.8 "the HRI column is uniquely indexed,
// lowercase normalized").
func (r *Registry) Put(ctx context.Context, uuid string, ac card.AgentCard) error {
	cardJSON, err := json.Marshal(ac)
	if err != nil {
		return fmt.Errorf("registry: marshal card: %w", err)
	}

	hasTEE := ac.Capabilities.TEEDetails != nil
	teeType := ""
	if m, ok := ac.Capabilities.TEEDetails.(map[string]any); ok {
		if t, ok := m["type"].(string); ok {
			teeType = t
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_cards (uuid, hri, name, description, has_tee, tee_type, card_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			hri = excluded.hri, name = excluded.name, description = excluded.description,
			has_tee = excluded.has_tee, tee_type = excluded.tee_type, card_json = excluded.card_json
	`, uuid, strings.ToLower(ac.HumanReadableID), ac.Name, ac.Description, boolToInt(hasTEE), teeType, string(cardJSON))
	if err != nil {
		return fmt.Errorf("registry: upsert card: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_card_tags WHERE card_uuid = ?`, uuid); err != nil {
		return fmt.Errorf("registry: clear tags: %w", err)
	}
	for _, tag := range ac.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO agent_card_tags (card_uuid, tag) VALUES (?, ?)`, uuid, strings.ToLower(tag)); err != nil {
			return fmt.Errorf("registry: insert tag: %w", err)
		}
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Summary is the list-view projection of a card (spec §4.8 "{ id,
// human_readable_id, name, description, tags, has_tee }").
type Summary struct {
	ID              string   `json:"id"`
	HumanReadableID string   `json:"human_readable_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
	HasTEE          bool     `json:"has_tee"`
}

// ListFilter captures the query parameters of GET /agent-cards (spec
// §4.8).
type ListFilter struct {
	Search  string
	Tags    []string
	HasTEE  *bool
	TEEType string
	Limit   int
	Offset  int
}

const (
	defaultLimit = 50
	// maxLimit is the hard cap spec §6 "Wire — Registry Read" sets:
	// "pagination via limit (<=100)".
	maxLimit = 100
)

// ListResult is the paginated response shape spec §6 requires: "listing
// returns {items, total, limit, offset}".
type ListResult struct {
	Items  []Summary `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// whereClause compiles f's tag/search/TEE predicates into a shared
// FROM/JOIN/WHERE fragment and its positional args, reused by both the
// COUNT(*) and the paginated SELECT so `total` reflects the same filter
// as `items` (spec §6).
func whereClause(f ListFilter) (fromJoin string, where string, args []any) {
	var (
		predicates []string
		whereArgs  []any
	)

	if f.Search != "" {
		needle := "%" + strings.ToLower(f.Search) + "%"
		predicates = append(predicates, "(lower(ac.name) LIKE ? OR lower(ac.description) LIKE ?)")
		whereArgs = append(whereArgs, needle, needle)
	}
	if f.HasTEE != nil {
		predicates = append(predicates, "ac.has_tee = ?")
		whereArgs = append(whereArgs, boolToInt(*f.HasTEE))
	}
	if f.TEEType != "" {
		predicates = append(predicates, "ac.tee_type = ?")
		whereArgs = append(whereArgs, f.TEEType)
	}

	fromJoin = "FROM agent_cards ac"
	if len(f.Tags) > 0 {
		placeholders := make([]string, len(f.Tags))
		for i, tag := range f.Tags {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(tag))
		}
		fromJoin += fmt.Sprintf(`
			JOIN (
				SELECT card_uuid FROM agent_card_tags
				WHERE tag IN (%s)
				GROUP BY card_uuid
				HAVING COUNT(DISTINCT tag) = ?
			) matched ON matched.card_uuid = ac.uuid
		`, strings.Join(placeholders, ","))
		args = append(args, len(f.Tags))
	}
	args = append(args, whereArgs...)

	if len(predicates) > 0 {
		where = " WHERE " + strings.Join(predicates, " AND ")
	}
	return fromJoin, where, args
}

// List returns a filtered, paginated summary page plus the total matching
// row count. Tags intersect via a GROUP BY/HAVING COUNT over the indexed
// join table, and TEE flags are plain indexed equality. The search filter
// is a case-insensitive substring match (lower(col) LIKE '%term%') on name
// and description; it uses no index, so it scans every row the other
// filters leave.
func (r *Registry) List(ctx context.Context, f ListFilter) (ListResult, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	fromJoin, where, filterArgs := whereClause(f)

	var total int
	countQuery := "SELECT COUNT(*) " + fromJoin + where
	if err := r.db.QueryRowContext(ctx, countQuery, filterArgs...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("registry: count query: %w", err)
	}

	selectQuery := `
		SELECT ac.uuid, ac.hri, ac.name, ac.description, ac.has_tee,
		       (SELECT group_concat(t.tag, ',') FROM agent_card_tags t WHERE t.card_uuid = ac.uuid) AS tags
		` + fromJoin + where + `
		ORDER BY ac.name ASC LIMIT ? OFFSET ?
	`
	args := append(append([]any{}, filterArgs...), limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("registry: list query: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s        Summary
			hasTEE   int
			tagsJoin sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.HumanReadableID, &s.Name, &s.Description, &hasTEE, &tagsJoin); err != nil {
			return ListResult{}, fmt.Errorf("registry: scan row: %w", err)
		}
		s.HasTEE = hasTEE != 0
		if tagsJoin.Valid && tagsJoin.String != "" {
			s.Tags = strings.Split(tagsJoin.String, ",")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}

	return ListResult{Items: out, Total: total, Limit: limit, Offset: f.Offset}, nil
}

// ErrNotFound is returned by GetByHRI/GetByUUID when no row matches.
var ErrNotFound = fmt.Errorf("registry: card not found")

// GetByHRI returns the full card JSON for the given human-readable id.
// Lookup is case-insensitive against the normalized index (spec §4.8
// "HRI slashes must be accepted url-encoded"; decoding happens at the
// HTTP layer, see Routes).
func (r *Registry) GetByHRI(ctx context.Context, hri string) (json.RawMessage, error) {
	var cardJSON string
	err := r.db.QueryRowContext(ctx, `SELECT card_json FROM agent_cards WHERE hri = ?`, strings.ToLower(hri)).Scan(&cardJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get by hri: %w", err)
	}
	return json.RawMessage(cardJSON), nil
}

// GetByUUID returns the full card JSON for the given catalog-assigned id.
func (r *Registry) GetByUUID(ctx context.Context, uuid string) (json.RawMessage, error) {
	var cardJSON string
	err := r.db.QueryRowContext(ctx, `SELECT card_json FROM agent_cards WHERE uuid = ?`, uuid).Scan(&cardJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get by uuid: %w", err)
	}
	return json.RawMessage(cardJSON), nil
}
