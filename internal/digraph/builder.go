package digraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stepline-org/stepline/internal/errs"
)

// build constructs a DAG from a decoded definition. This is the only place
// an edge can be introduced, so all graph validation happens here: the
// scheduler may assume the DAG it receives is acyclic.
func build(def *definition) (*DAG, error) {
	dag := New(def.Name)

	var errList errs.ErrorList

	names := make([]string, 0, len(def.Steps))
	for name := range def.Steps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stepDef := def.Steps[name]
		if err := validateStep(name, stepDef); err != nil {
			errList.Add(err)
			continue
		}
		dag.setStep(&Step{
			Name:        name,
			Description: stepDef.Description,
			Action:      stepDef.Action,
			Params:      stepDef.Params,
			DependsOn:   stepDef.DependsOn,
			Retries:     stepDef.Retries,
		})
	}

	if len(errList) > 0 {
		return nil, errList
	}

	// Wire dependency edges. A rejected edge is a configuration error and
	// must be surfaced: silently dropping a dependency changes execution
	// semantics unnoticed.
	for _, name := range names {
		dependsOn := def.Steps[name].DependsOn
		if dependsOn == "" {
			continue
		}
		if _, ok := def.Steps[dependsOn]; !ok {
			errList.Add(&errs.StepError{Step: name, Err: fmt.Errorf("%w: %q", errs.ErrDependencyUnknown, dependsOn)})
			continue
		}
		if !dag.AddStep(name, dependsOn) {
			errList.Add(&errs.StepError{Step: name, Err: rejectionError(dag, name, dependsOn)})
		}
	}

	if len(errList) > 0 {
		return nil, errList
	}

	return dag, nil
}

func validateStep(name string, def stepDef) error {
	if strings.TrimSpace(name) == "" {
		return errs.ErrStepNameRequired
	}
	if strings.TrimSpace(def.Action) == "" {
		return &errs.StepError{Step: name, Err: errs.ErrStepActionIsEmpty}
	}
	return nil
}

// rejectionError classifies why AddStep rejected the edge.
func rejectionError(dag *DAG, name, dependsOn string) error {
	switch {
	case name == dependsOn:
		return errs.ErrSelfDependency
	case dag.hasEdge(dependsOn, name):
		return fmt.Errorf("%w: %q", errs.ErrDuplicateEdge, dependsOn)
	default:
		return fmt.Errorf("%w: %q -> %q", errs.ErrCycleDetected, dependsOn, name)
	}
}
