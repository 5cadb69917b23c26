package a2a

import (
	"encoding/json"
	"testing"
)

func TestPartTextRoundTrip(t *testing.T) {
	p := Part{Type: PartTypeText, Text: "hello"}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Part
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != PartTypeText || decoded.Text != "hello" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestPartUnknownTagPreservesRaw(t *testing.T) {
	raw := `{"type":"video","uri":"https://example.com/v.mp4"}`
	var p Part
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Type != PartTypeUnknown {
		t.Fatalf("expected unknown type, got %v", p.Type)
	}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Fatalf("unknown part must re-serialize verbatim: got %s want %s", out, raw)
	}
}

func TestMCPContextFromMetadataRoundTrip(t *testing.T) {
	msg := Message{
		Role: RoleUser,
		Metadata: map[string]any{
			"mcp_context": map[string]any{
				"items": map[string]any{
					"tool_a": map[string]any{"content": "abc"},
				},
			},
		},
	}
	ctx, err := msg.MCPContextFromMetadata()
	if err != nil {
		t.Fatalf("extract mcp_context: %v", err)
	}
	if ctx == nil || len(ctx.Items) != 1 {
		t.Fatalf("expected one mcp_context item, got %+v", ctx)
	}
}

func TestMCPContextItemValidateRejectsBoth(t *testing.T) {
	uri := "https://example.com"
	item := MCPContextItem{Content: json.RawMessage(`"x"`), URI: &uri}
	if err := item.Validate(); err == nil {
		t.Fatalf("expected validation error when both content and uri are set")
	}
}

func TestMCPContextItemValidateRejectsNeither(t *testing.T) {
	item := MCPContextItem{}
	if err := item.Validate(); err == nil {
		t.Fatalf("expected validation error when neither content nor uri is set")
	}
}
