package a2a

import (
	"encoding/json"
	"fmt"
)

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType discriminates the Part union via its "type" tag.
type PartType string

const (
	PartTypeText        PartType = "text"
	PartTypeData        PartType = "data"
	PartTypeArtifactRef PartType = "artifact-ref"
	// PartTypeUnknown is never present on the wire; it marks a Part decoded
	// from a tag this build doesn't recognize, per spec §4.3's forward
	// compatibility requirement.
	PartTypeUnknown PartType = "unknown"
)

// Part is a tagged union of the three Part variants the spec defines, plus
// the synthetic Unknown fallback. Exactly the fields for Type are
// meaningful; Raw always holds the original bytes so re-serialization never
// drops data the current build doesn't understand.
type Part struct {
	Type PartType

	// Text carries PartTypeText's content.
	Text string

	// Data carries PartTypeData's content and media type.
	Data      any
	MediaType string

	// URI carries PartTypeArtifactRef's pointer to a remotely stored
	// payload.
	URI string

	// Raw is the untouched JSON object this Part was decoded from. It is
	// always populated, and is what Unknown parts re-serialize verbatim.
	Raw json.RawMessage
}

// MarshalJSON renders a Part back to its wire representation. Known types
// render structurally; Unknown re-emits Raw unchanged.
func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartTypeText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"content"`
		}{string(PartTypeText), p.Text})
	case PartTypeData:
		mt := p.MediaType
		if mt == "" {
			mt = "application/json"
		}
		return json.Marshal(struct {
			Type      string `json:"type"`
			Content   any    `json:"content"`
			MediaType string `json:"media_type"`
		}{string(PartTypeData), p.Data, mt})
	case PartTypeArtifactRef:
		return json.Marshal(struct {
			Type      string `json:"type"`
			URI       string `json:"uri"`
			MediaType string `json:"media_type,omitempty"`
		}{string(PartTypeArtifactRef), p.URI, p.MediaType})
	default:
		if len(p.Raw) > 0 {
			return p.Raw, nil
		}
		return json.Marshal(struct {
			Type string `json:"type"`
		}{string(PartTypeUnknown)})
	}
}

// UnmarshalJSON decodes a Part, tolerating any "type" tag it doesn't
// recognize by falling back to PartTypeUnknown and retaining Raw.
func (p *Part) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type      string `json:"type"`
		Content   any    `json:"content"`
		MediaType string `json:"media_type"`
		URI       string `json:"uri"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode part: %w", err)
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	switch PartType(probe.Type) {
	case PartTypeText:
		text, _ := probe.Content.(string)
		*p = Part{Type: PartTypeText, Text: text, Raw: raw}
	case PartTypeData:
		mt := probe.MediaType
		if mt == "" {
			mt = "application/json"
		}
		*p = Part{Type: PartTypeData, Data: probe.Content, MediaType: mt, Raw: raw}
	case PartTypeArtifactRef:
		*p = Part{Type: PartTypeArtifactRef, URI: probe.URI, MediaType: probe.MediaType, Raw: raw}
	default:
		*p = Part{Type: PartTypeUnknown, Raw: raw}
	}
	return nil
}

// MCPContext is the opaque mcp_context side channel (spec §3, §9). Items
// are preserved structurally but never interpreted: the resolver/executor
// pass them through untouched.
type MCPContext struct {
	Items map[string]MCPContextItem `json:"items"`
}

// MCPContextItem is one entry of an MCPContext. Exactly one of Content or
// URI should be present; this is checked structurally at decode time, never
// semantically.
type MCPContextItem struct {
	Content   json.RawMessage `json:"content,omitempty"`
	URI       *string         `json:"uri,omitempty"`
	MediaType *string         `json:"media_type,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Validate checks the structural invariant from spec §3: an item carries
// content or a uri, not neither and not both.
func (i MCPContextItem) Validate() error {
	hasContent := len(i.Content) > 0
	hasURI := i.URI != nil
	if hasContent == hasURI {
		return fmt.Errorf("mcp_context item must have exactly one of content or uri")
	}
	return nil
}

// Message is an ordered sequence of typed Parts from a single speaker.
type Message struct {
	Role     Role           `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MCPContextFromMetadata extracts and validates the optional mcp_context metadata key,
// returning nil if absent.
func (m Message) MCPContextFromMetadata() (*MCPContext, error) {
	raw, ok := m.Metadata["mcp_context"]
	if !ok || raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode mcp_context: %w", err)
	}
	var ctx MCPContext
	if err := json.Unmarshal(b, &ctx); err != nil {
		return nil, fmt.Errorf("decode mcp_context: %w", err)
	}
	for name, item := range ctx.Items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("mcp_context item %q: %w", name, err)
		}
	}
	return &ctx, nil
}
