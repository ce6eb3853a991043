package engine

import (
	"github.com/seanmmay/b0t-sub000/internal/expressions"
)

// Reserved top-level variable names.
const (
	VarUser    = "user"
	VarTrigger = "trigger"
)

// ExecutionContext is the state threaded through one run. It is owned by a
// single in-flight execution and never shared.
type ExecutionContext struct {
	WorkflowID string
	RunID      string
	UserID     string

	scope *expressions.Scope

	// persisted runs record step events.
	persisted bool

	output  any
	actions int
}

// NewExecutionContext seeds the variables: "user" holds the decrypted
// credentials plus the user's id, "trigger" holds the trigger payload.
func NewExecutionContext(workflowID, runID, userID string, credentials, trigger map[string]any) *ExecutionContext {
	user := make(map[string]any, len(credentials)+1)
	for k, v := range credentials {
		user[k] = v
	}
	user["id"] = userID
	if trigger == nil {
		trigger = map[string]any{}
	}
	return &ExecutionContext{
		WorkflowID: workflowID,
		RunID:      runID,
		UserID:     userID,
		scope: expressions.NewScope(map[string]any{
			VarUser:    user,
			VarTrigger: trigger,
		}),
	}
}

// Variables returns a deep copy of the current variables.
func (ec *ExecutionContext) Variables() map[string]any {
	return ec.scope.Snapshot()
}

// Get returns a top-level variable.
func (ec *ExecutionContext) Get(name string) (any, bool) {
	return ec.scope.Get(name)
}

// Output is the result of the last executed action, nil if none ran.
func (ec *ExecutionContext) Output() any { return ec.output }

// ActionsExecuted counts dispatched actions, including failed ones.
func (ec *ExecutionContext) ActionsExecuted() int { return ec.actions }
