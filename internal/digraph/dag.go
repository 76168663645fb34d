// Package digraph builds and validates the dependency graph of pipeline
// steps. Acyclicity is enforced when an edge is committed, never at query
// time: a DAG handed to the scheduler is guaranteed cycle-free.
package digraph

import "slices"

// DAG contains the steps of a pipeline and their prerequisite edges.
// It is built single-threaded and treated as read-only during execution.
type DAG struct {
	// Name is the job name of the pipeline.
	Name string

	steps    map[string]*Step
	order    []string
	succ     map[string][]string
	inDegree map[string]int
}

// New creates an empty DAG with the given job name.
func New(name string) *DAG {
	return &DAG{
		Name:     name,
		steps:    make(map[string]*Step),
		succ:     make(map[string][]string),
		inDegree: make(map[string]int),
	}
}

// AddStep registers name as a node and, when dependsOn is non-empty,
// attempts to commit the edge dependsOn -> name. It returns false without
// mutating the graph when the edge is a self-dependency, already exists,
// or would create a cycle. Edge insertion is atomic: a rejected call
// leaves no partial state behind.
func (d *DAG) AddStep(name, dependsOn string) bool {
	d.ensureNode(name)
	if dependsOn == "" {
		return true
	}
	if dependsOn == name || d.hasEdge(dependsOn, name) {
		return false
	}

	d.ensureNode(dependsOn)

	// Insert the edge tentatively, then validate the whole graph. The edge
	// is kept on success and rolled back on a cycle.
	d.succ[dependsOn] = append(d.succ[dependsOn], name)
	if d.DetectCycle() {
		d.succ[dependsOn] = d.succ[dependsOn][:len(d.succ[dependsOn])-1]
		return false
	}

	d.inDegree[name]++
	return true
}

// DetectCycle reports whether the graph contains a cycle. It runs a
// depth-first traversal with a visited set and an active-recursion set;
// a back-edge into the active set signals a cycle. All unvisited nodes
// are traversed so disconnected components terminate.
func (d *DAG) DetectCycle() bool {
	visited := make(map[string]bool, len(d.steps))
	stack := make(map[string]bool, len(d.steps))

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		stack[node] = true

		for _, succ := range d.succ[node] {
			if !visited[succ] {
				if dfs(succ) {
					return true
				}
			} else if stack[succ] {
				return true
			}
		}

		delete(stack, node)
		return false
	}

	for _, node := range d.order {
		if !visited[node] {
			if dfs(node) {
				return true
			}
		}
	}
	return false
}

// Steps returns all steps sorted by name.
func (d *DAG) Steps() []*Step {
	steps := make([]*Step, 0, len(d.order))
	for _, name := range d.order {
		steps = append(steps, d.steps[name])
	}
	return steps
}

// Step returns the step with the given name.
func (d *DAG) Step(name string) (*Step, bool) {
	step, ok := d.steps[name]
	return step, ok
}

// Successors returns the names of the steps that depend on the given step.
func (d *DAG) Successors(name string) []string {
	succ := make([]string, len(d.succ[name]))
	copy(succ, d.succ[name])
	return succ
}

// Descendants returns every step reachable from the given step, in
// breadth-first order. Used by the skip-dependents policy.
func (d *DAG) Descendants(name string) []string {
	visited := map[string]struct{}{name: {}}
	var result []string

	queue := append([]string(nil), d.succ[name]...)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if _, ok := visited[curr]; ok {
			continue
		}
		visited[curr] = struct{}{}
		result = append(result, curr)
		queue = append(queue, d.succ[curr]...)
	}
	return result
}

// InDegrees returns a copy of the in-degree map. Callers own the copy;
// the DAG's own counts are never mutated by an execution.
func (d *DAG) InDegrees() map[string]int {
	degrees := make(map[string]int, len(d.order))
	for _, name := range d.order {
		degrees[name] = d.inDegree[name]
	}
	return degrees
}

// EdgeCount returns the number of committed edges.
func (d *DAG) EdgeCount() int {
	count := 0
	for _, succ := range d.succ {
		count += len(succ)
	}
	return count
}

// Len returns the number of steps in the DAG.
func (d *DAG) Len() int {
	return len(d.steps)
}

func (d *DAG) ensureNode(name string) {
	if _, ok := d.steps[name]; ok {
		return
	}
	d.steps[name] = &Step{Name: name}

	// Keep iteration order deterministic regardless of config map order
	// by inserting each name at its sorted position.
	at, _ := slices.BinarySearch(d.order, name)
	d.order = slices.Insert(d.order, at, name)
}

func (d *DAG) hasEdge(from, to string) bool {
	for _, succ := range d.succ[from] {
		if succ == to {
			return true
		}
	}
	return false
}

// setStep attaches the full step definition to a registered node.
func (d *DAG) setStep(step *Step) {
	d.ensureNode(step.Name)
	d.steps[step.Name] = step
}
