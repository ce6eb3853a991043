package diagram

// NodeKind classifies a diagram node by its workflow step kind.
type NodeKind string

const (
	NodeKindAction    NodeKind = "action"
	NodeKindCondition NodeKind = "condition"
	NodeKindLoop      NodeKind = "loop"
	NodeKindStart     NodeKind = "start"
	NodeKindEnd       NodeKind = "end"
)

// Virtual node IDs framing the top-level chain.
const (
	StartID = "__start__"
	EndID   = "__end__"
)

// Overlay statuses, derived from a run's event log.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single step in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Status   *StatusOverlay
	Children []*SubGraph // condition branches, loop body
}

// SubGraph holds the nested steps of a condition branch or loop body.
type SubGraph struct {
	Label string
	Taken bool // the branch the run went down
	Nodes []*Node
	Edges []Edge
}

// StatusOverlay carries runtime state for a node.
type StatusOverlay struct {
	Status string
	Error  string
	Runs   int    // executions of an action, iterations of a loop
	Branch string // condition outcome: then or else
}

// Edge connects two nodes in execution order.
type Edge struct {
	From  string
	To    string
	Label string
}
