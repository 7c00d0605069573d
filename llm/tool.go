package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Tool is anything that can be placed in a request's tools list.
// ToolDefinition is shaped per provider; RawTool is sent as-is.
type Tool interface {
	ProviderShape(p Provider) (any, error)
}

// ToolDefinition describes a callable function the model may invoke.
// It is immutable once constructed; accessors return copies.
type ToolDefinition struct {
	name        string
	description string
	schema      json.RawMessage
}

// NewToolDefinition validates and builds a ToolDefinition.
// schema may be any JSON-encodable value. json.RawMessage and []byte are
// treated as already-encoded JSON and must be valid. The schema is opaque:
// JSON Schema keywords are not interpreted.
func NewToolDefinition(name, description string, schema any) (ToolDefinition, error) {
	if strings.TrimSpace(name) == "" {
		return ToolDefinition{}, errors.New("tool name is required")
	}
	raw, err := encodeSchema(schema)
	if err != nil {
		return ToolDefinition{}, fmt.Errorf("tool %q: %w", name, err)
	}
	return ToolDefinition{
		name:        name,
		description: description,
		schema:      raw,
	}, nil
}

func encodeSchema(schema any) (json.RawMessage, error) {
	switch s := schema.(type) {
	case json.RawMessage:
		return copyRawJSON(s)
	case []byte:
		return copyRawJSON(s)
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("schema is not JSON-encodable: %w", err)
		}
		return raw, nil
	}
}

func copyRawJSON(b []byte) (json.RawMessage, error) {
	if !json.Valid(b) {
		return nil, errors.New("schema is not valid JSON")
	}
	return append(json.RawMessage(nil), b...), nil
}

// Name returns the tool name.
func (t ToolDefinition) Name() string { return t.name }

// Description returns the tool description.
func (t ToolDefinition) Description() string { return t.description }

// Schema returns a copy of the encoded schema.
func (t ToolDefinition) Schema() json.RawMessage {
	if t.schema == nil {
		return json.RawMessage("null")
	}
	return append(json.RawMessage(nil), t.schema...)
}

// SchemaValue decodes the schema into generic Go values.
func (t ToolDefinition) SchemaValue() (any, error) {
	var v any
	if err := json.Unmarshal(t.Schema(), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ProviderShape returns the wire shape of the tool for provider p.
func (t ToolDefinition) ProviderShape(p Provider) (any, error) {
	shape, err := lookupToolShape(p)
	if err != nil {
		return nil, err
	}
	return shape.Encode(t)
}

// RawTool is an already-shaped tool entry passed through unchanged.
type RawTool map[string]any

// ProviderShape implements Tool.
func (r RawTool) ProviderShape(Provider) (any, error) {
	return map[string]any(r), nil
}

// ToolShape converts a ToolDefinition to and from one provider's wire shape.
type ToolShape struct {
	Encode func(t ToolDefinition) (any, error)
	Decode func(raw json.RawMessage) (ToolDefinition, error)
}

var (
	toolShapesMu sync.RWMutex
	toolShapes   = map[Provider]ToolShape{
		ProviderAnthropic: FlatToolShape,
		ProviderOllama:    FunctionToolShape,
		ProviderOpenAI:    FunctionToolShape,
	}
)

// RegisterToolShape sets the tool shape used for provider p, replacing any
// existing one.
func RegisterToolShape(p Provider, shape ToolShape) error {
	if p == "" {
		return errors.New("provider tag is required")
	}
	if shape.Encode == nil || shape.Decode == nil {
		return fmt.Errorf("tool shape for %q needs both Encode and Decode", string(p))
	}
	toolShapesMu.Lock()
	defer toolShapesMu.Unlock()
	toolShapes[p] = shape
	return nil
}

func lookupToolShape(p Provider) (ToolShape, error) {
	toolShapesMu.RLock()
	defer toolShapesMu.RUnlock()
	shape, ok := toolShapes[p]
	if !ok {
		return ToolShape{}, fmt.Errorf("no tool shape registered for provider %q", string(p))
	}
	return shape, nil
}

// ParseToolShape recovers a ToolDefinition from provider p's wire shape.
func ParseToolShape(p Provider, raw json.RawMessage) (ToolDefinition, error) {
	shape, err := lookupToolShape(p)
	if err != nil {
		return ToolDefinition{}, err
	}
	return shape.Decode(raw)
}

type flatTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// FlatToolShape is {name, description, input_schema}.
var FlatToolShape = ToolShape{
	Encode: func(t ToolDefinition) (any, error) {
		return flatTool{
			Name:        t.name,
			Description: t.description,
			InputSchema: t.Schema(),
		}, nil
	},
	Decode: func(raw json.RawMessage) (ToolDefinition, error) {
		var wire flatTool
		if err := json.Unmarshal(raw, &wire); err != nil {
			return ToolDefinition{}, fmt.Errorf("decode flat tool: %w", err)
		}
		if wire.InputSchema == nil {
			wire.InputSchema = json.RawMessage("null")
		}
		return NewToolDefinition(wire.Name, wire.Description, wire.InputSchema)
	},
}

// FunctionToolShape is {type: "function", function: {name, description, parameters}}.
var FunctionToolShape = ToolShape{
	Encode: func(t ToolDefinition) (any, error) {
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.name,
				Description: t.description,
				Parameters:  t.Schema(),
			},
		}, nil
	},
	Decode: func(raw json.RawMessage) (ToolDefinition, error) {
		// Parameters are decoded as raw bytes so the schema survives unchanged.
		var wire struct {
			Type     string `json:"type"`
			Function *struct {
				Name        string          `json:"name"`
				Description string          `json:"description"`
				Parameters  json.RawMessage `json:"parameters"`
			} `json:"function"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return ToolDefinition{}, fmt.Errorf("decode function tool: %w", err)
		}
		if wire.Function == nil {
			return ToolDefinition{}, errors.New("decode function tool: missing function object")
		}
		params := wire.Function.Parameters
		if params == nil {
			params = json.RawMessage("null")
		}
		return NewToolDefinition(wire.Function.Name, wire.Function.Description, params)
	},
}
