package digraph

import (
	"fmt"
	"strings"
)

// Step contains the definition of a single step in a pipeline.
// It is created when the DAG is built from configuration and is
// immutable afterwards.
type Step struct {
	// Name is the unique name of the step.
	Name string `json:"name"`
	// Description is the description of the step. This is optional.
	Description string `json:"description,omitempty"`
	// Action is the name of the registered action to invoke.
	Action string `json:"action"`
	// Params contains the parameter mapping passed to the action.
	Params map[string]any `json:"params,omitempty"`
	// DependsOn is the name of the single prerequisite step, if any.
	DependsOn string `json:"dependsOn,omitempty"`
	// Retries is the number of retry attempts on failure.
	Retries int `json:"retries,omitempty"`
}

// String returns a formatted string representation of the step.
func (s Step) String() string {
	fields := []struct {
		name  string
		value string
	}{
		{"Name", s.Name},
		{"Action", s.Action},
		{"DependsOn", s.DependsOn},
	}

	var parts []string
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field.name, field.value))
	}

	return strings.Join(parts, "\t")
}
