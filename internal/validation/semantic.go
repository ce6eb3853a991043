package validation

import (
	"fmt"
	"strings"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// semanticChecker walks the step tree once, recording every issue.
type semanticChecker struct {
	modules ModuleLookup
	seen    map[string]string // step id -> path of first occurrence
	result  *schema.ValidationResult

	// loopVars holds the item and index names bound by enclosing loops.
	loopVars []loopBinding
}

type loopBinding struct {
	name   string
	loopID string
}

// validateSemantic checks what JSON Schema cannot express: step ids unique
// across the whole tree, module paths registered, and variable names usable
// as {{path}} roots.
func validateSemantic(cfg *schema.WorkflowConfig, modules ModuleLookup) *schema.ValidationResult {
	c := &semanticChecker{
		modules: modules,
		seen:    make(map[string]string),
		result:  &schema.ValidationResult{},
	}
	c.steps(cfg.Steps, "steps")
	return c.result
}

func (c *semanticChecker) steps(steps []schema.Step, path string) {
	for i := range steps {
		c.step(&steps[i], fmt.Sprintf("%s[%d]", path, i))
	}
}

func (c *semanticChecker) step(s *schema.Step, path string) {
	if first, dup := c.seen[s.ID]; dup {
		c.result.Add(path+".id", s.ID, schema.ErrCodeValidation,
			fmt.Sprintf("duplicate step id %q (first used at %s)", s.ID, first))
	} else {
		c.seen[s.ID] = path
	}

	switch s.Kind {
	case schema.StepKindAction:
		if s.Action == nil {
			c.result.Add(path, s.ID, schema.ErrCodeValidation, "action step has no body")
			return
		}
		if c.modules != nil && !c.modules.Has(s.Action.Module) {
			c.result.Add(path+".module", s.ID, schema.ErrCodeModuleNotFound,
				fmt.Sprintf("module %q is not registered", s.Action.Module))
		}
		if s.Action.OutputAs != "" {
			c.variableName(s.Action.OutputAs, path+".outputAs", s.ID)
			c.loopShadow(s.Action.OutputAs, path+".outputAs", s.ID)
		}

	case schema.StepKindCondition:
		if s.Condition == nil {
			c.result.Add(path, s.ID, schema.ErrCodeValidation, "condition step has no body")
			return
		}
		c.steps(s.Condition.Then, path+".then")
		c.steps(s.Condition.Else, path+".else")

	case schema.StepKindLoop:
		if s.Loop == nil {
			c.result.Add(path, s.ID, schema.ErrCodeValidation, "loop step has no body")
			return
		}
		c.variableName(s.Loop.ItemVariable, path+".itemVariable", s.ID)
		if len(s.Loop.Steps) == 0 {
			c.result.Add(path+".steps", s.ID, schema.ErrCodeValidation, "loop body is empty")
		}
		depth := len(c.loopVars)
		c.loopVars = append(c.loopVars,
			loopBinding{name: s.Loop.ItemVariable, loopID: s.ID},
			loopBinding{name: s.Loop.ItemVariable + "Index", loopID: s.ID},
		)
		c.steps(s.Loop.Steps, path+".steps")
		c.loopVars = c.loopVars[:depth]
	}
}

// variableName rejects names that a {{path}} reference could never reach.
func (c *semanticChecker) variableName(name, path, stepID string) {
	switch {
	case name == "":
		c.result.Add(path, stepID, schema.ErrCodeValidation, "variable name is empty")
	case strings.ContainsAny(name, ".{} \t"):
		c.result.Add(path, stepID, schema.ErrCodeValidation,
			fmt.Sprintf("variable name %q must not contain dots, braces or whitespace", name))
	case name == "user" || name == "trigger":
		c.result.Add(path, stepID, schema.ErrCodeValidation,
			fmt.Sprintf("variable name %q is reserved", name))
	}
}

// loopShadow rejects an outputAs that names a loop binding in scope: the
// binding is restored after each iteration and the output would be lost.
func (c *semanticChecker) loopShadow(name, path, stepID string) {
	for _, b := range c.loopVars {
		if b.name == name {
			c.result.Add(path, stepID, schema.ErrCodeValidation,
				fmt.Sprintf("outputAs %q is bound by loop %s and would be discarded after each iteration", name, b.loopID))
			return
		}
	}
}
