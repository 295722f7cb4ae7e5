// Package validation checks workflow definitions against a JSON Schema
// before execution. Structural graph checks (successor references, duplicate
// ids) live in the graph builder; this layer catches shape errors early with
// readable messages.
package validation

import "github.com/emarren/vaultflow/pkg/schema"

// Validator checks workflow definitions and run inputs.
type Validator interface {
	ValidateDefinition(def *schema.WorkflowDefinition) error
	ValidateInput(input map[string]any, inputSchema []byte) error
}
