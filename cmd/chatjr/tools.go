package main

import (
	"fmt"
	"os"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"gopkg.in/yaml.v3"
)

// toolFile is the on-disk tool list. JSON files parse as YAML.
type toolFile struct {
	Tools []toolSpec `yaml:"tools"`
}

type toolSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	InputSchema any    `yaml:"input_schema"`
}

// LoadTools reads tool definitions from path.
func LoadTools(path string) ([]llm.Tool, error) {
	data, err := os.ReadFile(path) //#nosec 304 -- intentional file read for tool definitions
	if err != nil {
		return nil, fmt.Errorf("failed to read tools file %q: %w", path, err)
	}
	return ParseTools(data)
}

// ParseTools decodes a tool list document.
func ParseTools(data []byte) ([]llm.Tool, error) {
	var file toolFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tools: %w", err)
	}

	tools := make([]llm.Tool, 0, len(file.Tools))
	for i, spec := range file.Tools {
		def, err := llm.NewToolDefinition(spec.Name, spec.Description, spec.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}
		tools = append(tools, def)
	}
	return tools, nil
}
