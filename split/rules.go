package split

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"memwatch/timer"
	"memwatch/watch"
)

// Action is what a rule does when its condition holds.
type Action string

const (
	ActionStart  Action = "start"
	ActionSplit  Action = "split"
	ActionReset  Action = "reset"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionSplit, ActionReset, ActionPause, ActionResume:
		return true
	}
	return false
}

func (a Action) apply(t timer.Timer) {
	switch a {
	case ActionStart:
		t.Start()
	case ActionSplit:
		t.Split()
	case ActionReset:
		t.Reset()
	case ActionPause:
		t.PauseGameTime()
	case ActionResume:
		t.ResumeGameTime()
	}
}

// Rule fires Action on every tick its When expression evaluates to true.
//
// Expressions see three functions over the bound watchers:
//
//	current("name")  this tick's value
//	old("name")      last tick's value, or nil
//	changed("name")  whether the value changed since last tick
//
// e.g. `changed("level") && current("level") == 3`.
type Rule struct {
	Name   string
	Action Action
	When   string
}

// Binding is a watcher with its type erased.
type Binding interface {
	Current() (any, error)
	Old() (any, bool)
	Changed() (bool, error)
}

type bound[T comparable] struct {
	w *watch.Watcher[T]
}

// Bind erases w's type so rules can read it.
func Bind[T comparable](w *watch.Watcher[T]) Binding {
	return bound[T]{w: w}
}

func (b bound[T]) Current() (any, error) { return b.w.Current() }

func (b bound[T]) Old() (any, bool) { return b.w.Old() }

func (b bound[T]) Changed() (bool, error) { return b.w.Changed() }

type compiledRule struct {
	Rule
	program *exprvm.Program
}

// Rules is a Policy evaluating expression rules in order.
type Rules struct {
	bindings map[string]Binding
	rules    []compiledRule
}

// RuleError reports a rule that failed to compile or evaluate.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// ErrUnknownWatcher is returned when an expression names a watcher that is
// not bound.
var ErrUnknownWatcher = errors.New("unknown watcher")

// NewRules compiles rules against bindings.
func NewRules(bindings map[string]Binding, rules ...Rule) (*Rules, error) {
	r := &Rules{bindings: maps.Clone(bindings)}
	if r.bindings == nil {
		r.bindings = make(map[string]Binding)
	}

	var errs []error
	for i, rule := range rules {
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule %d", i)
		}
		if !rule.Action.Valid() {
			errs = append(errs, &RuleError{Rule: rule.Name, Err: fmt.Errorf("unknown action %q", rule.Action)})
			continue
		}
		program, err := exprlang.Compile(rule.When, exprlang.Env(compileEnv()), exprlang.AsBool())
		if err != nil {
			errs = append(errs, &RuleError{Rule: rule.Name, Err: err})
			continue
		}
		r.rules = append(r.rules, compiledRule{Rule: rule, program: program})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Names returns the bound watcher names, sorted.
func (r *Rules) Names() []string {
	return slices.Sorted(maps.Keys(r.bindings))
}

// Len returns the number of compiled rules.
func (r *Rules) Len() int { return len(r.rules) }

// Update evaluates every rule and applies the actions of those that hold.
// A rule whose expression reads a failing watcher does not fire.
func (r *Rules) Update(t timer.Timer) error {
	var errs []error
	for _, rule := range r.rules {
		var readErr error
		out, err := exprlang.Run(rule.program, r.environment(&readErr))
		if readErr != nil {
			err = readErr
		}
		if err != nil {
			errs = append(errs, &RuleError{Rule: rule.Name, Err: err})
			continue
		}
		if fire, _ := out.(bool); fire {
			rule.Action.apply(t)
		}
	}
	return errors.Join(errs...)
}

// environment exposes the watcher functions. The first watcher failure is
// stored in readErr.
func (r *Rules) environment(readErr *error) map[string]any {
	lookup := func(name string) (Binding, error) {
		b, ok := r.bindings[name]
		if !ok {
			return nil, keepFirst(readErr, fmt.Errorf("%w %q", ErrUnknownWatcher, name))
		}
		return b, nil
	}
	return map[string]any{
		"current": func(name string) (any, error) {
			b, err := lookup(name)
			if err != nil {
				return nil, err
			}
			v, err := b.Current()
			if err != nil {
				return nil, keepFirst(readErr, err)
			}
			return v, nil
		},
		"old": func(name string) (any, error) {
			b, err := lookup(name)
			if err != nil {
				return nil, err
			}
			v, ok := b.Old()
			if !ok {
				return nil, nil
			}
			return v, nil
		},
		"changed": func(name string) (bool, error) {
			b, err := lookup(name)
			if err != nil {
				return false, err
			}
			// Observe current first so the watcher has an old value next tick
			// even when the expression short-circuits.
			if _, err := b.Current(); err != nil {
				return false, keepFirst(readErr, err)
			}
			changed, err := b.Changed()
			if err != nil {
				return false, keepFirst(readErr, err)
			}
			return changed, nil
		},
	}
}

func keepFirst(readErr *error, err error) error {
	if *readErr == nil {
		*readErr = err
	}
	return err
}

// compileEnv carries the function signatures for type checking.
func compileEnv() map[string]any {
	var discard error
	return (&Rules{}).environment(&discard)
}
