package schema

import (
	"bytes"
	"encoding/json"
)

// WorkflowConfig is the declarative step tree of a workflow.
// It is the JSON shape stored alongside a workflow and accepted for inline runs.
type WorkflowConfig struct {
	Steps []Step `json:"steps"`
}

// StepKind discriminates the variants of Step.
type StepKind string

const (
	StepKindAction    StepKind = "action"
	StepKindCondition StepKind = "condition"
	StepKindLoop      StepKind = "loop"
)

// Step is one node in a workflow's execution tree. Exactly one of
// Action, Condition or Loop is set, matching Kind.
type Step struct {
	ID        string
	Kind      StepKind
	Action    *ActionStep
	Condition *ConditionStep
	Loop      *LoopStep
}

// ActionStep dispatches a module and optionally stores its result.
type ActionStep struct {
	Module   string         `json:"module"`
	Inputs   map[string]any `json:"inputs"`
	OutputAs string         `json:"outputAs,omitempty"`
}

// ConditionStep runs Then when Test resolves truthy, Else otherwise.
type ConditionStep struct {
	Test any    `json:"test"`
	Then []Step `json:"then"`
	Else []Step `json:"else,omitempty"`
}

// LoopStep runs Steps once per element of Over, in order.
type LoopStep struct {
	Over         any    `json:"over"`
	ItemVariable string `json:"itemVariable"`
	Steps        []Step `json:"steps"`
}

// NewActionStep builds an action step.
func NewActionStep(id, module string, inputs map[string]any, outputAs string) Step {
	return Step{ID: id, Kind: StepKindAction, Action: &ActionStep{Module: module, Inputs: inputs, OutputAs: outputAs}}
}

// NewConditionStep builds a condition step.
func NewConditionStep(id string, test any, then, otherwise []Step) Step {
	return Step{ID: id, Kind: StepKindCondition, Condition: &ConditionStep{Test: test, Then: then, Else: otherwise}}
}

// NewLoopStep builds a loop step.
func NewLoopStep(id string, over any, itemVariable string, steps []Step) Step {
	return Step{ID: id, Kind: StepKindLoop, Loop: &LoopStep{Over: over, ItemVariable: itemVariable, Steps: steps}}
}

// stepWire is the union of every field any variant may carry on the wire.
type stepWire struct {
	ID           string          `json:"id"`
	Kind         StepKind        `json:"kind,omitempty"`
	Module       string          `json:"module,omitempty"`
	Inputs       map[string]any  `json:"inputs,omitempty"`
	OutputAs     string          `json:"outputAs,omitempty"`
	Test         json.RawMessage `json:"test,omitempty"`
	Then         []Step          `json:"then,omitempty"`
	Else         []Step          `json:"else,omitempty"`
	Over         json.RawMessage `json:"over,omitempty"`
	ItemVariable string          `json:"itemVariable,omitempty"`
	Steps        []Step          `json:"steps,omitempty"`
}

// UnmarshalJSON decodes the stored wire format. A step without "kind" is an action.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = Step{ID: w.ID}
	switch w.Kind {
	case "", StepKindAction:
		s.Kind = StepKindAction
		inputs := w.Inputs
		if inputs == nil {
			inputs = map[string]any{}
		}
		s.Action = &ActionStep{Module: w.Module, Inputs: inputs, OutputAs: w.OutputAs}
	case StepKindCondition:
		test, err := decodeAny(w.Test)
		if err != nil {
			return NewErrorf(ErrCodeValidation, "step %q: invalid test: %s", w.ID, err.Error()).WithCause(err)
		}
		s.Kind = StepKindCondition
		s.Condition = &ConditionStep{Test: test, Then: w.Then, Else: w.Else}
	case StepKindLoop:
		over, err := decodeAny(w.Over)
		if err != nil {
			return NewErrorf(ErrCodeValidation, "step %q: invalid over: %s", w.ID, err.Error()).WithCause(err)
		}
		s.Kind = StepKindLoop
		s.Loop = &LoopStep{Over: over, ItemVariable: w.ItemVariable, Steps: w.Steps}
	default:
		return NewErrorf(ErrCodeValidation, "step %q: unknown kind %q", w.ID, w.Kind)
	}
	return nil
}

// MarshalJSON emits the stored wire format for the step's variant.
func (s Step) MarshalJSON() ([]byte, error) {
	switch {
	case s.Kind == StepKindCondition && s.Condition != nil:
		then := s.Condition.Then
		if then == nil {
			then = []Step{}
		}
		return json.Marshal(struct {
			ID   string   `json:"id"`
			Kind StepKind `json:"kind"`
			Test any      `json:"test"`
			Then []Step   `json:"then"`
			Else []Step   `json:"else,omitempty"`
		}{s.ID, StepKindCondition, s.Condition.Test, then, s.Condition.Else})
	case s.Kind == StepKindLoop && s.Loop != nil:
		steps := s.Loop.Steps
		if steps == nil {
			steps = []Step{}
		}
		return json.Marshal(struct {
			ID           string   `json:"id"`
			Kind         StepKind `json:"kind"`
			Over         any      `json:"over"`
			ItemVariable string   `json:"itemVariable"`
			Steps        []Step   `json:"steps"`
		}{s.ID, StepKindLoop, s.Loop.Over, s.Loop.ItemVariable, steps})
	default:
		var a ActionStep
		if s.Action != nil {
			a = *s.Action
		}
		if a.Inputs == nil {
			a.Inputs = map[string]any{}
		}
		return json.Marshal(struct {
			ID       string         `json:"id"`
			Module   string         `json:"module"`
			Inputs   map[string]any `json:"inputs"`
			OutputAs string         `json:"outputAs,omitempty"`
		}{s.ID, a.Module, a.Inputs, a.OutputAs})
	}
}

// Children returns the nested step lists of a condition or loop.
func (s *Step) Children() [][]Step {
	switch s.Kind {
	case StepKindCondition:
		if s.Condition != nil {
			return [][]Step{s.Condition.Then, s.Condition.Else}
		}
	case StepKindLoop:
		if s.Loop != nil {
			return [][]Step{s.Loop.Steps}
		}
	}
	return nil
}

func decodeAny(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
