package unity

import (
	"errors"
	"fmt"
	"strings"

	"memwatch/memory"
)

// FieldPath reads a T through a chain of named fields starting at a
// component attached to a scene object.
//
// Two caches with different lifetimes back it. The component instance is
// cached until the scene changes or any read fails. The field offsets live in
// an OffsetCache that only ever grows, so a failure part way through resumes
// at the first unresolved field on the next call.
type FieldPath[T any] struct {
	rt        *Runtime
	scene     string
	root      string
	path      []string
	component string
	fields    []string

	offsets OffsetCache
	cached  *memory.Address
}

// NewFieldPath creates a path for scene:root/objectPath.../[component].fields...
func NewFieldPath[T any](rt *Runtime, scene, root string, objectPath []string, component string, fields ...string) (*FieldPath[T], error) {
	cache, err := NewOffsetCache(len(fields))
	if err != nil {
		return nil, err
	}
	return &FieldPath[T]{
		rt:        rt,
		scene:     scene,
		root:      root,
		path:      append([]string(nil), objectPath...),
		component: component,
		fields:    append([]string(nil), fields...),
		offsets:   cache,
	}, nil
}

// Get reads the value. Any failure drops the cached component; resolved
// offsets are kept.
func (p *FieldPath[T]) Get() (T, error) {
	v, err := p.get()
	if err != nil {
		p.cached = nil
		return v, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return v, nil
}

func (p *FieldPath[T]) get() (T, error) {
	var zero T
	if err := requireScene(p.rt.Scenes, p.scene); err != nil {
		return zero, err
	}

	comp, err := p.instance()
	if err != nil {
		return zero, err
	}

	if err := resolveChain(p.rt, &p.offsets, comp, p.fields, nil); err != nil {
		return zero, err
	}
	return memory.Read[T](p.rt.Memory, comp, p.rt.Width, p.offsets.offsets[:p.offsets.depth])
}

func (p *FieldPath[T]) instance() (memory.Address, error) {
	if p.cached != nil {
		return *p.cached, nil
	}
	obj, err := findObject(p.rt.Scenes, p.root, p.path)
	if err != nil {
		return 0, err
	}
	comp, err := p.rt.Scenes.Component(obj, p.component)
	if err != nil {
		return 0, fmt.Errorf("couldn't find component %q on %s: %w", p.component, obj, err)
	}
	p.cached = &comp
	return comp, nil
}

// Resolved returns how many leading fields have known offsets.
func (p *FieldPath[T]) Resolved() int { return p.offsets.Resolved() }

// Offsets returns the offsets resolved so far.
func (p *FieldPath[T]) Offsets() []uint64 { return p.offsets.Offsets() }

// HasInstance reports whether a component instance is cached.
func (p *FieldPath[T]) HasInstance() bool { return p.cached != nil }

// Forget drops the cached component instance.
func (p *FieldPath[T]) Forget() { p.cached = nil }

func (p *FieldPath[T]) String() string {
	parts := append([]string{p.root}, p.path...)
	return fmt.Sprintf("%s:%s[%s].%s", p.scene, strings.Join(parts, "/"), p.component, strings.Join(p.fields, "."))
}

// ClassPath reads a T through a chain of named fields starting at the static
// fields of a class found by name. The class, optionally walked up through
// parents, is looked up once; the static table once it exists.
type ClassPath[T any] struct {
	rt      *Runtime
	lookup  ClassLookup
	class   string
	parents int
	fields  []string

	offsets OffsetCache
	cls     *Class
	static  memory.Address
}

// NewClassPath creates a path for class(^parents).fields...
func NewClassPath[T any](rt *Runtime, class string, parents int, fields ...string) (*ClassPath[T], error) {
	lookup, ok := rt.Meta.(ClassLookup)
	if !ok {
		return nil, ErrNoClassLookup
	}
	if parents < 0 {
		return nil, fmt.Errorf("negative parent count %d", parents)
	}
	cache, err := NewOffsetCache(len(fields))
	if err != nil {
		return nil, err
	}
	return &ClassPath[T]{
		rt:      rt,
		lookup:  lookup,
		class:   class,
		parents: parents,
		fields:  append([]string(nil), fields...),
		offsets: cache,
	}, nil
}

// Get reads the value.
func (p *ClassPath[T]) Get() (T, error) {
	v, err := p.get()
	if err != nil {
		return v, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return v, nil
}

func (p *ClassPath[T]) get() (T, error) {
	var zero T
	if p.cls == nil {
		cls, err := p.findClass()
		if err != nil {
			return zero, err
		}
		p.cls = &cls
	}
	if p.static.IsNull() {
		st, err := p.lookup.StaticTable(*p.cls)
		if err != nil {
			return zero, fmt.Errorf("couldn't get static table of %s: %w", p.class, err)
		}
		if st.IsNull() {
			return zero, errors.New("static table not initialized yet")
		}
		p.static = st
	}

	if err := resolveChain(p.rt, &p.offsets, p.static, p.fields, p.cls); err != nil {
		return zero, err
	}
	return memory.Read[T](p.rt.Memory, p.static, p.rt.Width, p.offsets.offsets[:p.offsets.depth])
}

func (p *ClassPath[T]) findClass() (Class, error) {
	cls, err := p.lookup.FindClass(p.class)
	if err != nil {
		return 0, fmt.Errorf("couldn't find class %q: %w", p.class, err)
	}
	for i := 0; i < p.parents; i++ {
		cls, err = p.lookup.Parent(cls)
		if err != nil {
			return 0, fmt.Errorf("couldn't get parent %d of class %q: %w", i+1, p.class, err)
		}
	}
	return cls, nil
}

// Resolved returns how many leading fields have known offsets.
func (p *ClassPath[T]) Resolved() int { return p.offsets.Resolved() }

func (p *ClassPath[T]) String() string {
	return fmt.Sprintf("%s%s.%s", p.class, strings.Repeat("^", p.parents), strings.Join(p.fields, "."))
}
