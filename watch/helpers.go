package watch

// ChangedTo reports whether w changed this tick and now equals v. It always
// observes current, so a watcher polled only through ChangedTo still has an
// old value next tick.
func ChangedTo[T comparable](w *Watcher[T], v T) (bool, error) {
	cur, err := w.Current()
	if err != nil {
		return false, err
	}
	changed, err := w.Changed()
	if err != nil || !changed {
		return false, err
	}
	return cur == v, nil
}

// ChangedFrom reports whether w changed this tick away from v. Like
// ChangedTo it always observes current.
func ChangedFrom[T comparable](w *Watcher[T], v T) (bool, error) {
	if _, err := w.Current(); err != nil {
		return false, err
	}
	changed, err := w.Changed()
	if err != nil || !changed {
		return false, err
	}
	old, _ := w.Old()
	return old == v, nil
}

// Rose reports a false -> true edge.
func Rose(w *Watcher[bool]) (bool, error) {
	return ChangedTo(w, true)
}

// Fell reports a true -> false edge.
func Fell(w *Watcher[bool]) (bool, error) {
	return ChangedTo(w, false)
}

// Set invalidates a group of watchers together. A memory model embeds one
// and adds every watcher it builds.
type Set struct {
	members []Invalidator
}

// Add registers invalidators and returns the set for chaining.
func (s *Set) Add(inv ...Invalidator) *Set {
	s.members = append(s.members, inv...)
	return s
}

// Len returns the number of registered invalidators.
func (s *Set) Len() int {
	return len(s.members)
}

// Invalidate ends the tick for every member.
func (s *Set) Invalidate() {
	for _, m := range s.members {
		m.Invalidate()
	}
}

// Track registers w with s and returns w, so construction and registration
// read as one expression.
func Track[T comparable](s *Set, w *Watcher[T]) *Watcher[T] {
	s.Add(w)
	return w
}
