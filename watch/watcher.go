// Package watch caches values from fallible sources across polling ticks.
//
// A Watcher holds the value observed this tick ("current") and the value
// observed before the most recent Invalidate ("old"). Within one tick the
// source is asked at most once.
package watch

// Source produces a value on demand. Pointer paths, scene-object locators
// and reflective field paths all satisfy it.
type Source[T any] interface {
	Get() (T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func() (T, error)

func (f SourceFunc[T]) Get() (T, error) { return f() }

// Invalidator is anything that must be told a tick has ended.
type Invalidator interface {
	Invalidate()
}

type slot[T any] struct {
	value T
	ok    bool
}

// Watcher is a dual-buffer cache over a Source.
type Watcher[T comparable] struct {
	source Source[T]

	// current is valid for the tick; err is the tick's cached failure.
	current  slot[T]
	err      error
	computed bool

	old slot[T]
	def slot[T]
}

// New creates a watcher over src.
func New[T comparable](src Source[T]) *Watcher[T] {
	return &Watcher[T]{source: src}
}

// Func is shorthand for New(SourceFunc[T](fn)).
func Func[T comparable](fn func() (T, error)) *Watcher[T] {
	return New[T](SourceFunc[T](fn))
}

// WithDefault makes the watcher substitute v whenever the source fails. The
// default is treated as a successfully observed value.
func (w *Watcher[T]) WithDefault(v T) *Watcher[T] {
	w.def = slot[T]{value: v, ok: true}
	return w
}

// WithZeroDefault substitutes the zero value of T on failure.
func (w *Watcher[T]) WithZeroDefault() *Watcher[T] {
	var zero T
	return w.WithDefault(zero)
}

// Current returns this tick's value, asking the source on the first call
// only. A failure is cached for the tick as well, unless a default is set.
func (w *Watcher[T]) Current() (T, error) {
	if !w.computed {
		w.computed = true
		v, err := w.source.Get()
		switch {
		case err == nil:
			w.current = slot[T]{value: v, ok: true}
		case w.def.ok:
			w.current = w.def
		default:
			w.err = err
		}
	}
	if w.current.ok {
		return w.current.value, nil
	}
	var zero T
	return zero, w.err
}

// Old returns the value cached as current before the last Invalidate.
func (w *Watcher[T]) Old() (T, bool) {
	return w.old.value, w.old.ok
}

// Changed reports whether current differs from old. With no old value the
// answer is false; the first observation is never a change.
func (w *Watcher[T]) Changed() (bool, error) {
	if !w.old.ok {
		return false, nil
	}
	cur, err := w.Current()
	if err != nil {
		return false, err
	}
	return cur != w.old.value, nil
}

// Invalidate ends the tick: whatever was cached as current becomes old. If
// Current was not called since the last Invalidate, old becomes empty; the
// previous old value is not carried forward.
func (w *Watcher[T]) Invalidate() {
	w.old = w.current
	w.current = slot[T]{}
	w.err = nil
	w.computed = false
}

// Observed reports whether the source has been asked this tick.
func (w *Watcher[T]) Observed() bool {
	return w.computed
}
