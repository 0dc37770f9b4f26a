// Package agent defines the tool contract an autonomous caller binds
// against: named operations with JSON-schema inputs and a tagged response
// envelope.
package agent

import "context"

// Tool is a named operation with a JSON string input and output.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, inputJSON string) (string, error)
}

// ToolWithSchema extends Tool with a JSON-schema parameter declaration
// for agent bootstrap.
type ToolWithSchema interface {
	Tool
	Parameters() map[string]interface{}
}
