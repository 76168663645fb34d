package scheduler

import (
	"sync"
	"time"

	"github.com/stepline-org/stepline/internal/action"
	"github.com/stepline-org/stepline/internal/digraph"
)

// NodeStatus is the run-time state of one step.
type NodeStatus int

const (
	NodeStatusQueued NodeStatus = iota
	NodeStatusRunning
	NodeStatusSuccess
	NodeStatusFailed
	NodeStatusSkipped
)

func (s NodeStatus) String() string {
	switch s {
	case NodeStatusRunning:
		return "running"
	case NodeStatusSuccess:
		return "succeeded"
	case NodeStatusFailed:
		return "failed"
	case NodeStatusSkipped:
		return "skipped"
	case NodeStatusQueued:
		fallthrough
	default:
		return "queued"
	}
}

// NodeState is a point-in-time snapshot of a node.
type NodeState struct {
	Status     NodeStatus
	Err        error
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Node pairs a step with its mutable execution state. The step and the
// resolved action are fixed at setup; the state is guarded by the mutex
// because the scheduler goroutine and the step goroutine both touch it.
type Node struct {
	step   *digraph.Step
	action action.Action

	mu   sync.RWMutex
	data NodeState
}

func newNode(step *digraph.Step, act action.Action) *Node {
	return &Node{step: step, action: act}
}

// Step returns the step this node executes.
func (n *Node) Step() *digraph.Step {
	return n.step
}

// State returns a snapshot of the node's execution state.
func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.data
}

func (n *Node) setRunID(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data.RunID = id
}

func (n *Node) start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data.Status = NodeStatusRunning
	n.data.StartedAt = time.Now()
}

func (n *Node) finish(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data.FinishedAt = time.Now()
	if err != nil {
		n.data.Status = NodeStatusFailed
		n.data.Err = err
		return
	}
	n.data.Status = NodeStatusSuccess
}

func (n *Node) skip() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data.Status = NodeStatusSkipped
}
