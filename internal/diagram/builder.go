package diagram

import (
	"encoding/json"
	"fmt"

	"github.com/seanmmay/b0t-sub000/internal/expressions"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// Build lays out a step tree as a chain from Start to End. Condition
// branches and loop bodies become nested subgraphs.
//
// When events is non-empty it is taken as the log of one run and each node
// gets a StatusOverlay; steps the run never reached are marked skipped.
func Build(title string, steps []schema.Step, events []*store.RunEvent) *DiagramModel {
	if title == "" {
		title = "Workflow"
	}
	ov := indexEvents(events)

	m := &DiagramModel{Title: title}
	start := &Node{ID: StartID, Label: "Start", Kind: NodeKindStart}
	m.Nodes = append(m.Nodes, start)
	m.Levels = append(m.Levels, []string{StartID})

	prev := StartID
	for i := range steps {
		node := buildNode(&steps[i], ov)
		m.Nodes = append(m.Nodes, node)
		m.Edges = append(m.Edges, Edge{From: prev, To: node.ID})
		m.Levels = append(m.Levels, []string{node.ID})
		prev = node.ID
	}

	m.Nodes = append(m.Nodes, &Node{ID: EndID, Label: "End", Kind: NodeKindEnd})
	m.Edges = append(m.Edges, Edge{From: prev, To: EndID})
	m.Levels = append(m.Levels, []string{EndID})
	return m
}

func buildNode(s *schema.Step, ov *overlay) *Node {
	node := &Node{ID: s.ID, Label: s.ID, Kind: kindOf(s.Kind), Status: ov.status(s.ID)}

	switch s.Kind {
	case schema.StepKindCondition:
		if s.Condition == nil {
			break
		}
		node.Label = fmt.Sprintf("%s\nif %s", s.ID, valueLabel(s.Condition.Test))
		branch := ""
		if node.Status != nil {
			branch = node.Status.Branch
		}
		then := buildSubGraph("then", s.Condition.Then, ov)
		then.Taken = branch == "then"
		node.Children = append(node.Children, then)
		if len(s.Condition.Else) > 0 || branch == "else" {
			els := buildSubGraph("else", s.Condition.Else, ov)
			els.Taken = branch == "else"
			node.Children = append(node.Children, els)
		}

	case schema.StepKindLoop:
		if s.Loop == nil {
			break
		}
		node.Label = fmt.Sprintf("%s\nfor %s in %s", s.ID, s.Loop.ItemVariable, valueLabel(s.Loop.Over))
		node.Children = append(node.Children, buildSubGraph("body", s.Loop.Steps, ov))

	default:
		if s.Action != nil {
			node.Label = fmt.Sprintf("%s\n(%s)", s.ID, s.Action.Module)
		}
	}

	// A failure inside a branch or body fails the enclosing step too.
	if node.Status != nil && node.Status.Status != StatusError && childFailed(node) {
		node.Status.Status = StatusError
	}
	return node
}

// buildSubGraph chains nested steps in execution order.
func buildSubGraph(label string, steps []schema.Step, ov *overlay) *SubGraph {
	sg := &SubGraph{Label: label}
	for i := range steps {
		node := buildNode(&steps[i], ov)
		if i > 0 {
			sg.Edges = append(sg.Edges, Edge{From: steps[i-1].ID, To: node.ID})
		}
		sg.Nodes = append(sg.Nodes, node)
	}
	return sg
}

func childFailed(node *Node) bool {
	for _, sg := range node.Children {
		for _, n := range sg.Nodes {
			if n.Status != nil && n.Status.Status == StatusError {
				return true
			}
		}
	}
	return false
}

func kindOf(k schema.StepKind) NodeKind {
	switch k {
	case schema.StepKindCondition:
		return NodeKindCondition
	case schema.StepKindLoop:
		return NodeKindLoop
	default:
		return NodeKindAction
	}
}

// valueLabel renders a condition test or loop source for display.
func valueLabel(v any) string {
	if v == nil {
		return "null"
	}
	s := expressions.Stringify(v)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

// --- Run overlay ---

type overlay struct {
	enabled bool
	steps   map[string]*StatusOverlay
}

func indexEvents(events []*store.RunEvent) *overlay {
	ov := &overlay{enabled: len(events) > 0, steps: make(map[string]*StatusOverlay)}
	for _, ev := range events {
		if ev.StepID == "" {
			continue
		}
		st, ok := ov.steps[ev.StepID]
		if !ok {
			st = &StatusOverlay{}
			ov.steps[ev.StepID] = st
		}
		var payload map[string]any
		_ = json.Unmarshal(ev.Payload, &payload)

		switch ev.Type {
		case schema.EventStepStarted:
			st.Status = StatusRunning
			st.Runs++
		case schema.EventStepCompleted:
			st.Status = StatusSuccess
		case schema.EventStepFailed:
			st.Status = StatusError
			if msg, ok := payload["error"].(string); ok {
				st.Error = msg
			}
		case schema.EventConditionEvaluated:
			st.Status = StatusSuccess
			if b, ok := payload["branch"].(string); ok {
				st.Branch = b
			}
		case schema.EventLoopIterStarted:
			st.Status = StatusRunning
			st.Runs++
		case schema.EventLoopCompleted:
			st.Status = StatusSuccess
		}
	}
	return ov
}

// status returns a copy of the overlay for stepID, nil without a run.
func (ov *overlay) status(stepID string) *StatusOverlay {
	if !ov.enabled {
		return nil
	}
	st, ok := ov.steps[stepID]
	if !ok {
		return &StatusOverlay{Status: StatusSkipped}
	}
	cp := *st
	return &cp
}
