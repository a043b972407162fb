// Package pointerpath composes a base address with an ordered offset list and
// reads typed values through a memory.Readable.
//
// Each offset except the last is "add, then dereference"; the last offset is
// added before the final typed read. Paths are immutable: Child derives a new
// path and never touches the parent.
package pointerpath

import (
	"fmt"

	"memwatch/memory"
	"memwatch/watch"
)

// Path is a base address plus an ordered list of offsets, bound to the
// Readable it reads through. The Readable is borrowed from the attach session.
type Path struct {
	name     string
	readable memory.Readable
	base     memory.Address
	width    memory.PointerWidth
	offsets  []uint64
}

// New creates a path. The offsets are copied.
func New(r memory.Readable, base memory.Address, width memory.PointerWidth, offsets ...uint64) Path {
	return Path{
		readable: r,
		base:     base,
		width:    width,
		offsets:  append([]uint64(nil), offsets...),
	}
}

// Named returns a copy labelled for diagnostics. The label has no effect on
// reads.
func (p Path) Named(name string) Path {
	p.name = name
	return p
}

// Name returns the diagnostic label, if any.
func (p Path) Name() string { return p.name }

// Base returns the base address.
func (p Path) Base() memory.Address { return p.base }

// Width returns the pointer width used for dereferences.
func (p Path) Width() memory.PointerWidth { return p.width }

// Offsets returns a copy of the offset list.
func (p Path) Offsets() []uint64 {
	return append([]uint64(nil), p.offsets...)
}

// readOffsets is the offset list used for reading; an empty path reads
// directly at the base.
func (p Path) readOffsets() []uint64 {
	if len(p.offsets) == 0 {
		return []uint64{0}
	}
	return p.offsets
}

// Child derives a path that continues from p. The parent's last offset and
// the first child offset are folded into one: the parent's last offset was
// never dereferenced, so the two additions accumulate before the next
// dereference.
//
// Child panics when called without offsets.
func (p Path) Child(offsets ...uint64) Path {
	if len(offsets) == 0 {
		panic("pointerpath: child path is empty")
	}

	var prefix []uint64
	var last uint64
	if n := len(p.offsets); n > 0 {
		prefix = p.offsets[:n-1]
		last = p.offsets[n-1]
	}

	merged := make([]uint64, 0, len(prefix)+len(offsets))
	merged = append(merged, prefix...)
	merged = append(merged, last+offsets[0])
	merged = append(merged, offsets[1:]...)

	return Path{
		readable: p.readable,
		base:     p.base,
		width:    p.width,
		offsets:  merged,
	}
}

// String renders the path as "(name: 0xBASE, 0x10, 0x20)".
func (p Path) String() string {
	chain := memory.DescribeChain(p.base, p.offsets)
	if p.name != "" {
		return fmt.Sprintf("(%s: %s)", p.name, chain)
	}
	return fmt.Sprintf("(%s)", chain)
}

// Read performs the composite read of a T along p.
func Read[T any](p Path) (T, error) {
	v, err := memory.Read[T](p.readable, p.base, p.width, p.readOffsets())
	if err != nil {
		return v, fmt.Errorf("failed to read pointer path %s: %w", p, err)
	}
	return v, nil
}

// Value adapts p into a watch.Source of T.
func Value[T any](p Path) watch.Source[T] {
	return watch.SourceFunc[T](func() (T, error) {
		return Read[T](p)
	})
}

// Watch creates a watcher reading a T along p.
func Watch[T comparable](p Path) *watch.Watcher[T] {
	return watch.New(Value[T](p))
}

// WatchChild creates a watcher reading a T along p.Child(offsets...).
func WatchChild[T comparable](p Path, offsets ...uint64) *watch.Watcher[T] {
	return Watch[T](p.Child(offsets...))
}
