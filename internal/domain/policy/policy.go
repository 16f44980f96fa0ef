// Package policy provides optional CEL-based tool access rules.
//
// Rules are compiled once at startup and evaluated before a tool handler
// runs. First matching rule wins; with no rules configured every call is
// allowed.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// Action is what a matching rule does.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// maxExpressionLength bounds rule conditions so a pathological config cannot
// stall compilation or evaluation.
const maxExpressionLength = 1024

// evalTimeout caps a single rule evaluation.
const evalTimeout = 5 * time.Second

// Rule is one configured access rule.
type Rule struct {
	Name      string
	Condition string
	Action    Action
}

// Decision is the outcome of evaluating a tool call against the rules.
type Decision struct {
	Allowed bool
	Rule    string // name of the matching rule, empty for the default
}

// Engine evaluates tool calls against compiled rules.
type Engine struct {
	rules []compiledRule
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// NewEngine compiles all rule conditions. Variables available to conditions:
// tool.name (string) and args (map of the call's arguments).
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("tool", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("args", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy environment: %w", err)
	}

	e := &Engine{}
	for _, r := range rules {
		if r.Condition == "" {
			return nil, fmt.Errorf("rule %q: condition is empty", r.Name)
		}
		if len(r.Condition) > maxExpressionLength {
			return nil, fmt.Errorf("rule %q: condition too long (%d characters, max %d)",
				r.Name, len(r.Condition), maxExpressionLength)
		}
		if r.Action != ActionAllow && r.Action != ActionDeny {
			return nil, fmt.Errorf("rule %q: action must be allow or deny, got %q", r.Name, r.Action)
		}

		ast, issues := env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, issues.Err())
		}
		prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{rule: r, program: prg})
	}
	return e, nil
}

// Evaluate runs the rules in order against a tool call. The first rule whose
// condition is true decides; no match means allow.
func (e *Engine) Evaluate(ctx context.Context, toolName string, args map[string]any) (Decision, error) {
	if len(e.rules) == 0 {
		return Decision{Allowed: true}, nil
	}

	if args == nil {
		args = map[string]any{}
	}
	activation := map[string]any{
		"tool": map[string]any{"name": toolName},
		"args": args,
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	for _, cr := range e.rules {
		result, _, err := cr.program.ContextEval(evalCtx, activation)
		if err != nil {
			return Decision{}, fmt.Errorf("rule %q: evaluation failed: %w", cr.rule.Name, err)
		}
		matched, ok := result.Value().(bool)
		if !ok {
			return Decision{}, fmt.Errorf("rule %q: condition did not return a boolean", cr.rule.Name)
		}
		if matched {
			return Decision{
				Allowed: cr.rule.Action == ActionAllow,
				Rule:    cr.rule.Name,
			}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

// ErrDenied is returned by callers translating a deny decision into a
// handler-level failure.
var ErrDenied = errors.New("tool call denied by policy")
