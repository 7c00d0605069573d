package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aschepis/backscratcher/chatjr/llm"
)

func TestParseToolsYAML(t *testing.T) {
	doc := `
tools:
  - name: get_current_weather
    description: Get the current weather in a given location
    input_schema:
      type: object
      properties:
        location:
          type: string
        unit:
          type: string
          enum: [celsius, fahrenheit]
      required: [location]
  - name: ping
    description: No arguments
`
	tools, err := ParseTools([]byte(doc))
	if err != nil {
		t.Fatalf("ParseTools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}

	shaped, err := tools[0].ProviderShape(llm.ProviderAnthropic)
	if err != nil {
		t.Fatalf("ProviderShape: %v", err)
	}
	encoded, err := json.Marshal(shaped)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(encoded, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["name"] != "get_current_weather" {
		t.Errorf("name = %v", got["name"])
	}
	schema, ok := got["input_schema"].(map[string]any)
	if !ok || schema["type"] != "object" {
		t.Errorf("input_schema = %v", got["input_schema"])
	}
}

func TestParseToolsJSON(t *testing.T) {
	doc := `{"tools": [{"name": "lookup", "description": "Look up a term", "input_schema": {"type": "object"}}]}`
	tools, err := ParseTools([]byte(doc))
	if err != nil {
		t.Fatalf("ParseTools: %v", err)
	}
	def, ok := tools[0].(llm.ToolDefinition)
	if !ok {
		t.Fatalf("unexpected tool type %T", tools[0])
	}
	if def.Name() != "lookup" || string(def.Schema()) != `{"type":"object"}` {
		t.Errorf("tool = %s %s", def.Name(), def.Schema())
	}
}

func TestParseToolsErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid yaml", "tools: [name: {"},
		{"missing name", "tools:\n  - description: nameless\n"},
		{"non-string keys", "tools:\n  - name: odd\n    input_schema:\n      1: one\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTools([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadToolsMissingFile(t *testing.T) {
	if _, err := LoadTools(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadToolsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(path, []byte("tools:\n  - name: now\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tools, err := LoadTools(path)
	if err != nil {
		t.Fatalf("LoadTools: %v", err)
	}
	if len(tools) != 1 {
		t.Errorf("expected 1 tool, got %d", len(tools))
	}
}
