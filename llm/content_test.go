package llm

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNormalizeContentString(t *testing.T) {
	for _, s := range []string{"Hi! My name is Claude.", "", "multi\nline \"quoted\""} {
		raw := mustMarshal(t, s)
		items, err := NormalizeContent(raw)
		if err != nil {
			t.Fatalf("NormalizeContent(%s): %v", raw, err)
		}
		if len(items) != 1 {
			t.Fatalf("expected exactly one item, got %d", len(items))
		}
		if items[0].Kind != ContentKindText || items[0].Text != s {
			t.Errorf("expected text item %q, got %+v", s, items[0])
		}
	}
}

func TestNormalizeContentEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", "  null  ", "[]"} {
		items, err := NormalizeContent(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("NormalizeContent(%q): %v", raw, err)
		}
		if items == nil || len(items) != 0 {
			t.Errorf("NormalizeContent(%q) = %#v, want empty non-nil slice", raw, items)
		}
	}
}

func TestNormalizeContentTypedBlocks(t *testing.T) {
	raw := json.RawMessage(`[
		{"type":"text","text":"Let me check."},
		{"type":"tool_use","id":"toolu_01","name":"get_current_weather","input":{"location":"Paris, FR","format":"celsius"}},
		{"type":"thinking","thinking":"hmm","signature":"abc"},
		{"type":"text","text":"Done."}
	]`)

	items, err := NormalizeContent(raw)
	if err != nil {
		t.Fatalf("NormalizeContent: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}

	wantKinds := []ContentKind{ContentKindText, ContentKindToolUse, ContentKindUnknown, ContentKindText}
	for i, want := range wantKinds {
		if items[i].Kind != want {
			t.Errorf("item %d kind = %q, want %q", i, items[i].Kind, want)
		}
	}

	if items[0].Text != "Let me check." || items[3].Text != "Done." {
		t.Errorf("text items out of order: %q, %q", items[0].Text, items[3].Text)
	}

	tu := items[1].ToolUse
	if tu == nil || tu.ID != "toolu_01" || tu.Name != "get_current_weather" {
		t.Fatalf("unexpected tool use: %+v", tu)
	}
	input, err := tu.InputMap()
	if err != nil {
		t.Fatalf("InputMap: %v", err)
	}
	if input["location"] != "Paris, FR" || input["format"] != "celsius" {
		t.Errorf("unexpected input: %v", input)
	}

	if !bytes.Equal(items[2].Raw, []byte(`{"type":"thinking","thinking":"hmm","signature":"abc"}`)) {
		t.Errorf("unknown item not preserved byte-for-byte: %s", items[2].Raw)
	}
}

func TestNormalizeContentTurns(t *testing.T) {
	raw := json.RawMessage(`[{"role":"user","content":"Hi"},{"role":"assistant","content":"Hello!"}]`)
	items, err := NormalizeContent(raw)
	if err != nil {
		t.Fatalf("NormalizeContent: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for i, want := range []Turn{{"user", "Hi"}, {"assistant", "Hello!"}} {
		if items[i].Kind != ContentKindTurn || items[i].Turn == nil || *items[i].Turn != want {
			t.Errorf("item %d = %+v, want turn %+v", i, items[i], want)
		}
	}
}

func TestNormalizeContentUnknownVariants(t *testing.T) {
	tests := []struct {
		name string
		elem string
	}{
		{"unknown tag", `{"type":"image","source":{"type":"base64","data":"AAAA"}}`},
		{"text without text", `{"type":"text"}`},
		{"text with number", `{"type":"text","text":42}`},
		{"tool_use without id", `{"type":"tool_use","name":"x","input":{}}`},
		{"tool_use with array input", `{"type":"tool_use","id":"a","name":"x","input":[1]}`},
		{"tool_use with null input", `{"type":"tool_use","id":"a","name":"x","input":null}`},
		{"non-string tag", `{"type":7,"text":"x"}`},
		{"turn with object content", `{"role":"user","content":[{"type":"text","text":"x"}]}`},
		{"string element", `"loose string"`},
		{"number element", `12.50`},
		{"null element", `null`},
		{"nested array", `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := NormalizeContent(json.RawMessage("[" + tt.elem + "]"))
			if err != nil {
				t.Fatalf("NormalizeContent: %v", err)
			}
			if len(items) != 1 {
				t.Fatalf("expected 1 item, got %d", len(items))
			}
			if items[0].Kind != ContentKindUnknown {
				t.Fatalf("kind = %q, want unknown", items[0].Kind)
			}
			if string(items[0].Raw) != tt.elem {
				t.Errorf("raw = %s, want %s", items[0].Raw, tt.elem)
			}
		})
	}
}

func TestNormalizeContentSingleObject(t *testing.T) {
	items, err := NormalizeContent(json.RawMessage(`{"type":"text","text":"solo"}`))
	if err != nil {
		t.Fatalf("NormalizeContent: %v", err)
	}
	if len(items) != 1 || items[0].Kind != ContentKindText || items[0].Text != "solo" {
		t.Errorf("unexpected items: %+v", items)
	}

	items, err = NormalizeContent(json.RawMessage(`true`))
	if err != nil {
		t.Fatalf("NormalizeContent: %v", err)
	}
	if len(items) != 1 || items[0].Kind != ContentKindUnknown || string(items[0].Raw) != "true" {
		t.Errorf("unexpected items: %+v", items)
	}

	if _, err := NormalizeContent(json.RawMessage(`{"broken"`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNormalizeContentIdempotent(t *testing.T) {
	raw := json.RawMessage(`[
		"stray",
		{"type":"text","text":"a"},
		{"type":"tool_use","id":"t1","name":"calc","input":{"expr":"1+1"}},
		{"role":"user","content":"turn"},
		{"type":"server_tool_use","id":"s1","name":"web_search","input":{"q":"go"}},
		{"type":"text"}
	]`)

	first, err := NormalizeContent(raw)
	if err != nil {
		t.Fatalf("NormalizeContent: %v", err)
	}

	encoded := mustMarshal(t, first)
	second, err := NormalizeContent(encoded)
	if err != nil {
		t.Fatalf("NormalizeContent (second pass): %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("length changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Kind != b.Kind {
			t.Errorf("item %d kind changed: %q -> %q", i, a.Kind, b.Kind)
			continue
		}
		assertJSONEqual(t, mustMarshal(t, b), mustMarshal(t, a))
	}

	if !bytes.Equal(mustMarshal(t, second), encoded) {
		t.Errorf("re-encoding changed bytes:\n%s\n%s", encoded, mustMarshal(t, second))
	}
}

func TestContentItemUnmarshal(t *testing.T) {
	var items []ContentItem
	if err := json.Unmarshal([]byte(`[{"type":"text","text":"x"},{"type":"mystery"}]`), &items); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(items) != 2 || items[0].Kind != ContentKindText || items[1].Kind != ContentKindUnknown {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		role      string
		content   string
		toolCalls string
	}{
		{
			name:      "plain",
			raw:       `{"role":"assistant","content":"Hello"}`,
			role:      "assistant",
			content:   "Hello",
			toolCalls: `[]`,
		},
		{
			name:      "tool calls",
			raw:       `{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_current_weather","arguments":{"format":"celsius","location":"Paris, FR"}}}]}`,
			role:      "assistant",
			content:   "",
			toolCalls: `[{"function":{"name":"get_current_weather","arguments":{"format":"celsius","location":"Paris, FR"}}}]`,
		},
		{
			name:      "missing function object",
			raw:       `{"role":"assistant","content":"x","tool_calls":[{"id":"call_1"},{"function":null}]}`,
			role:      "assistant",
			content:   "x",
			toolCalls: `[{"function":{"name":""}},{"function":{"name":""}}]`,
		},
		{
			name:      "string arguments",
			raw:       `{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"f","arguments":"{\"a\":1}"}}]}`,
			role:      "assistant",
			content:   "",
			toolCalls: `[{"function":{"name":"f","arguments":"{\"a\":1}"}}]`,
		},
		{
			name:      "null tool calls",
			raw:       `{"role":"assistant","content":"y","tool_calls":null}`,
			role:      "assistant",
			content:   "y",
			toolCalls: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NormalizeMessage(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("NormalizeMessage: %v", err)
			}
			if msg.Role != tt.role {
				t.Errorf("role = %q, want %q", msg.Role, tt.role)
			}
			if msg.Content != tt.content {
				t.Errorf("content = %q, want %q", msg.Content, tt.content)
			}
			if msg.ToolCalls == nil {
				t.Fatal("ToolCalls must never be nil")
			}
			assertJSONEqual(t, mustMarshal(t, msg.ToolCalls), []byte(tt.toolCalls))
		})
	}
}

func TestNormalizeMessageInvalid(t *testing.T) {
	if _, err := NormalizeMessage(json.RawMessage(`"just a string"`)); err == nil {
		t.Error("expected error for non-object message")
	}
}
