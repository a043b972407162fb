// Package split decides, once per tick, which commands to send to the timer
// based on the memory model's watchers.
package split

import (
	"errors"

	"memwatch/timer"
	"memwatch/watch"
)

// Policy inspects watchers and drives the timer. Update is called once per
// tick after the model has been invalidated.
type Policy interface {
	Update(t timer.Timer) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(t timer.Timer) error

func (f PolicyFunc) Update(t timer.Timer) error { return f(t) }

// Chain runs policies in order. Every policy runs even if an earlier one
// fails; the failures are joined.
func Chain(policies ...Policy) Policy {
	return PolicyFunc(func(t timer.Timer) error {
		var errs []error
		for _, p := range policies {
			if err := p.Update(t); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LoadRemover pauses game time while Loading reads true and starts the run
// when Scene changes into StartScene.
type LoadRemover struct {
	Loading *watch.Watcher[bool]

	// Scene and StartScene are optional; without them the run is never
	// started automatically.
	Scene      *watch.Watcher[string]
	StartScene string
}

func (p *LoadRemover) Update(t timer.Timer) error {
	var errs []error

	// The scene is observed every tick so it has an old value on the tick
	// after a reset.
	if p.Scene != nil && p.StartScene != "" {
		entered, err := watch.ChangedTo(p.Scene, p.StartScene)
		if t.State() == timer.NotRunning {
			if err != nil {
				errs = append(errs, err)
			} else if entered {
				t.Start()
			}
		}
	}

	if t.State() == timer.Running && p.Loading != nil {
		loading, err := p.Loading.Current()
		switch {
		case err != nil:
			errs = append(errs, err)
		case loading:
			t.PauseGameTime()
		default:
			t.ResumeGameTime()
		}
	}

	return errors.Join(errs...)
}
