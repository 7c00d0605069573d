package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// ContentKind is the tag of a ContentItem.
type ContentKind string

const (
	ContentKindText    ContentKind = "text"
	ContentKindToolUse ContentKind = "tool_use"
	ContentKindTurn    ContentKind = "turn"
	ContentKindUnknown ContentKind = "unknown"
)

// ContentItem is one normalized unit of a response payload.
// Exactly one of Text, ToolUse, Turn, or Raw is meaningful, selected by Kind.
type ContentItem struct {
	Kind    ContentKind
	Text    string          // For text items
	ToolUse *ToolUse        // For tool_use items
	Turn    *Turn           // For turn items
	Raw     json.RawMessage // For unknown items, byte-for-byte
}

// ToolUse is a tool invocation requested by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage // Always a JSON object
}

// InputMap decodes Input into a map.
func (t ToolUse) InputMap() (map[string]any, error) {
	input := make(map[string]any)
	if len(t.Input) == 0 {
		return input, nil
	}
	if err := json.Unmarshal(t.Input, &input); err != nil {
		return nil, fmt.Errorf("decode tool input: %w", err)
	}
	return input, nil
}

// Turn is one entry of a transcript-style content array.
type Turn struct {
	Role    string
	Content string
}

// NewTextItem creates a text ContentItem.
func NewTextItem(text string) ContentItem {
	return ContentItem{Kind: ContentKindText, Text: text}
}

// NewToolUseItem creates a tool_use ContentItem.
func NewToolUseItem(id, name string, input json.RawMessage) ContentItem {
	return ContentItem{Kind: ContentKindToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: cloneRaw(input)}}
}

// NewTurnItem creates a turn ContentItem.
func NewTurnItem(role, content string) ContentItem {
	return ContentItem{Kind: ContentKindTurn, Turn: &Turn{Role: role, Content: content}}
}

// NewUnknownItem creates an unknown ContentItem holding a copy of raw.
func NewUnknownItem(raw json.RawMessage) ContentItem {
	return ContentItem{Kind: ContentKindUnknown, Raw: cloneRaw(raw)}
}

// MarshalJSON writes the item back in its wire shape, so marshalled items
// normalize to themselves.
func (c ContentItem) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContentKindText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{string(ContentKindText), c.Text})
	case ContentKindToolUse:
		tu := ToolUse{}
		if c.ToolUse != nil {
			tu = *c.ToolUse
		}
		input := tu.Input
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		return json.Marshal(struct {
			Type  string          `json:"type"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{string(ContentKindToolUse), tu.ID, tu.Name, input})
	case ContentKindTurn:
		turn := Turn{}
		if c.Turn != nil {
			turn = *c.Turn
		}
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{turn.Role, turn.Content})
	default:
		if len(c.Raw) == 0 {
			return []byte("null"), nil
		}
		return cloneRaw(c.Raw), nil
	}
}

// UnmarshalJSON classifies a single wire element.
func (c *ContentItem) UnmarshalJSON(data []byte) error {
	*c = normalizeElement(data)
	return nil
}

// NormalizeContent parses a content field into an ordered sequence of items.
//
// A string becomes one text item. An array is normalized element by element,
// keeping order. null or an empty field yields an empty sequence. Any other
// value is normalized as a single element.
func NormalizeContent(raw json.RawMessage) ([]ContentItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isJSONNull(trimmed) {
		return []ContentItem{}, nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("decode content string: %w", err)
		}
		return []ContentItem{NewTextItem(text)}, nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("decode content array: %w", err)
		}
		return lo.Map(elems, func(elem json.RawMessage, _ int) ContentItem {
			return normalizeElement(elem)
		}), nil
	default:
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("decode content: invalid JSON")
		}
		return []ContentItem{normalizeElement(trimmed)}, nil
	}
}

// normalizeElement maps one array element to a ContentItem. Elements that do
// not match a known variant exactly are kept as unknown.
func normalizeElement(raw json.RawMessage) ContentItem {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return NewUnknownItem(raw)
	}

	tagRaw, tagged := obj["type"]
	if !tagged {
		role, okRole := stringField(obj, "role")
		content, okContent := stringField(obj, "content")
		if okRole && okContent {
			return NewTurnItem(role, content)
		}
		return NewUnknownItem(raw)
	}

	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		return NewUnknownItem(raw)
	}

	switch ContentKind(tag) {
	case ContentKindText:
		if text, ok := stringField(obj, "text"); ok {
			return NewTextItem(text)
		}
	case ContentKindToolUse:
		id, okID := stringField(obj, "id")
		name, okName := stringField(obj, "name")
		input, okInput := objectField(obj, "input")
		if okID && okName && okInput {
			return NewToolUseItem(id, name, input)
		}
	}
	return NewUnknownItem(raw)
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func objectField(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return bytes.TrimSpace(raw), true
}

// Message is the message-level view of bodies that carry a single
// {role, content, tool_calls} object instead of a content array.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall is a tool invocation in message-level form.
type ToolCall struct {
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the invoked function and its arguments.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NormalizeMessage parses a {role, content, tool_calls} object.
// ToolCalls is never nil. A call without a nested function object yields an
// empty name and no arguments.
func NormalizeMessage(raw json.RawMessage) (*Message, error) {
	var wire struct {
		Role      string            `json:"role"`
		Content   json.RawMessage   `json:"content"`
		ToolCalls []json.RawMessage `json:"tool_calls"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	msg := &Message{
		Role:      wire.Role,
		Content:   messageText(wire.Content),
		ToolCalls: lo.Map(wire.ToolCalls, func(call json.RawMessage, _ int) ToolCall { return normalizeToolCall(call) }),
	}
	return msg, nil
}

func messageText(raw json.RawMessage) string {
	if len(raw) == 0 || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Multi-part content is kept as its JSON text.
	return string(bytes.TrimSpace(raw))
}

func normalizeToolCall(raw json.RawMessage) ToolCall {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ToolCall{}
	}
	fnRaw, ok := obj["function"]
	if !ok {
		return ToolCall{}
	}
	var fn map[string]json.RawMessage
	if err := json.Unmarshal(fnRaw, &fn); err != nil || fn == nil {
		return ToolCall{}
	}

	name, _ := stringField(fn, "name")
	var args json.RawMessage
	if a, ok := fn["arguments"]; ok && !isJSONNull(a) {
		args = cloneRaw(bytes.TrimSpace(a))
	}
	return ToolCall{Function: ToolCallFunction{Name: name, Arguments: args}}
}
