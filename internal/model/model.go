// Package model builds the memory model a configuration declares: named
// watchers over pointer paths, invalidated together every tick, and the
// splitting policy that reads them.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memwatch/driver"
	"memwatch/internal/config"
	"memwatch/internal/gba"
	"memwatch/internal/logging"
	"memwatch/memory"
	"memwatch/pointerpath"
	"memwatch/split"
	"memwatch/timer"
	"memwatch/watch"
)

// Target is the memory a model reads: raw bytes, pointer chains and the base
// addresses of loaded modules.
type Target interface {
	memory.Readable
	memory.MemoryReader
	ModuleBase(name string) (memory.Address, error)
}

// Model holds every configured watcher. It implements driver.Model and
// split.Policy.
type Model struct {
	set    watch.Set
	values []*Value
	byName map[string]*Value
	emu    *gba.Emulator
	policy split.Policy
	rules  *split.Rules
}

// Build creates the model for cfg over target. With an emulator configured,
// it first waits until the emulator's guest memory can be located.
func Build(ctx context.Context, cfg *config.Config, target Target, log logging.Logger) (*Model, error) {
	log = logging.OrNoOp(log)
	m := &Model{byName: map[string]*Value{}}

	var (
		mem   memory.Readable = target
		width                 = cfg.Width()
	)
	if cfg.Emulator != nil {
		emu, err := driver.TryLoad(ctx, log, cfg.TryLoadDelay, func(context.Context) (*gba.Emulator, error) {
			if gt, ok := target.(guestTarget); ok {
				if emu, ok := gt.Guest(); ok {
					return emu, nil
				}
			}
			return newEmulator(cfg, target)
		})
		if err != nil {
			return nil, fmt.Errorf("locate emulator memory: %w", err)
		}
		m.emu = emu
		m.set.Add(emu)
		mem, width = emu, memory.Width32
	}

	for _, wc := range cfg.Watchers {
		base := memory.Address(wc.Base)
		if cfg.Emulator == nil {
			mod := wc.Module
			if mod == "" {
				mod = cfg.Module
			}
			if mod != "" {
				modBase, err := target.ModuleBase(mod)
				if err != nil {
					return nil, fmt.Errorf("watcher %s: %w", wc.Name, err)
				}
				base = modBase.Add(uint64(wc.Base))
			}
		}
		p := pointerpath.New(mem, base, width, config.Uint64s(wc.Offsets)...).Named(wc.Name)
		v, err := build(wc, p)
		if err != nil {
			return nil, err
		}
		m.set.Add(v)
		m.values = append(m.values, v)
		m.byName[v.Name] = v
	}

	if err := m.buildPolicy(cfg); err != nil {
		return nil, err
	}
	log.Debug("memory model built", "watchers", len(m.values), "emulator", m.emu != nil)
	return m, nil
}

func newEmulator(cfg *config.Config, host Target) (*gba.Emulator, error) {
	ewram, err := hostAddress(cfg, host, cfg.Emulator.EWRAM)
	if err != nil {
		return nil, fmt.Errorf("ewram: %w", err)
	}
	iwram, err := hostAddress(cfg, host, cfg.Emulator.IWRAM)
	if err != nil {
		return nil, fmt.Errorf("iwram: %w", err)
	}
	return gba.New(host, ewram, iwram)
}

func hostAddress(cfg *config.Config, host Target, hp config.HostPointer) (memory.Address, error) {
	base := memory.Address(hp.Base)
	if hp.Module != "" {
		modBase, err := host.ModuleBase(hp.Module)
		if err != nil {
			return 0, err
		}
		base = modBase.Add(uint64(hp.Base))
	}
	if len(hp.Offsets) == 0 {
		return base, nil
	}
	p := pointerpath.New(host, base, cfg.Width(), config.Uint64s(hp.Offsets)...)
	var (
		addr memory.Address
		err  error
	)
	if cfg.Width() == memory.Width32 {
		var a memory.Address32
		a, err = pointerpath.Read[memory.Address32](p)
		addr = a.Address()
	} else {
		var a memory.Address64
		a, err = pointerpath.Read[memory.Address64](p)
		addr = a.Address()
	}
	if err != nil {
		return 0, err
	}
	if addr.IsNull() {
		return 0, memory.ErrNullPointer
	}
	return addr, nil
}

func (m *Model) buildPolicy(cfg *config.Config) error {
	var policies []split.Policy

	if lr := cfg.LoadRemoval; lr != nil {
		loading, err := m.lookupBool(lr.Loading)
		if err != nil {
			return err
		}
		var scene *watch.Watcher[string]
		if lr.Scene != "" {
			v, err := m.Value(lr.Scene)
			if err != nil {
				return err
			}
			if scene, err = Watcher[string](v); err != nil {
				return err
			}
		}
		policies = append(policies, &split.LoadRemover{Loading: loading, Scene: scene, StartScene: lr.StartScene})
	}

	if len(cfg.Rules) > 0 {
		bindings := make(map[string]split.Binding, len(m.values))
		for _, v := range m.values {
			bindings[v.Name] = v.Binding()
		}
		rules, err := split.NewRules(bindings, cfg.SplitRules()...)
		if err != nil {
			return err
		}
		m.rules = rules
		policies = append(policies, rules)
	}

	if cfg.GameTime != "" {
		v, err := m.Value(cfg.GameTime)
		if err != nil {
			return err
		}
		if v.seconds == nil {
			return fmt.Errorf("game_time: watcher %s is not numeric", v.Name)
		}
		policies = append(policies, split.PolicyFunc(func(t timer.Timer) error {
			secs, err := v.seconds()
			if err != nil {
				return err
			}
			if validSeconds(secs) {
				t.SetGameTime(time.Duration(secs * float64(time.Second)))
			}
			return nil
		}))
	}

	policies = append(policies, split.PolicyFunc(m.publish))
	m.policy = split.Chain(policies...)
	return nil
}

func (m *Model) lookupBool(name string) (*watch.Watcher[bool], error) {
	v, err := m.Value(name)
	if err != nil {
		return nil, err
	}
	return Watcher[bool](v)
}

// publish mirrors every Publish value into a timer variable. Unreadable
// values are skipped.
func (m *Model) publish(t timer.Timer) error {
	for _, v := range m.values {
		if !v.Publish {
			continue
		}
		s, err := v.Format()
		if err != nil {
			continue
		}
		t.SetVariable(v.Name, s)
	}
	return nil
}

// ErrNoValue is returned when a watcher name is not configured.
var ErrNoValue = errors.New("no such watcher")

// Value returns the watcher named name.
func (m *Model) Value(name string) (*Value, error) {
	v, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoValue, name)
	}
	return v, nil
}

// Values returns the watchers in configuration order.
func (m *Model) Values() []*Value {
	return append([]*Value(nil), m.values...)
}

// Rules returns the compiled split rules, or nil.
func (m *Model) Rules() *split.Rules { return m.rules }

// Emulator returns the emulator memory, or nil for a plain process target.
func (m *Model) Emulator() *gba.Emulator { return m.emu }

// Invalidate ends the tick for every watcher and drops emulator pages.
func (m *Model) Invalidate() { m.set.Invalidate() }

// Update runs the configured policies.
func (m *Model) Update(t timer.Timer) error { return m.policy.Update(t) }

// Reading is one watcher's value at a point in time.
type Reading struct {
	Name  string
	Path  string
	Value string
	Err   error
}

// Read formats every value for this tick.
func (m *Model) Read() []Reading {
	out := make([]Reading, 0, len(m.values))
	for _, v := range m.values {
		s, err := v.Format()
		out = append(out, Reading{Name: v.Name, Path: v.Path.String(), Value: s, Err: err})
	}
	return out
}
