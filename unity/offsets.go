package unity

import (
	"errors"
	"fmt"

	"memwatch/memory"
)

// MaxDepth is the longest field chain an OffsetCache can hold.
const MaxDepth = 128

// OffsetCache holds the byte offsets of a field chain as they are
// discovered, one position at a time.
//
// Resolution is monotonic: once position i is resolved it is never derived
// again, and later calls resume at the first unresolved position. Offsets
// are a property of the class layout, which is assumed not to change for the
// lifetime of the process.
type OffsetCache struct {
	offsets  [MaxDepth]uint64
	resolved int
	depth    int
}

// NewOffsetCache creates an empty cache for a chain of depth fields.
func NewOffsetCache(depth int) (OffsetCache, error) {
	if depth < 1 || depth > MaxDepth {
		return OffsetCache{}, fmt.Errorf("%w: %d fields (max %d)", ErrTooDeep, depth, MaxDepth)
	}
	return OffsetCache{depth: depth}, nil
}

// Depth returns the number of fields in the chain.
func (c *OffsetCache) Depth() int { return c.depth }

// Resolved returns how many leading positions are resolved.
func (c *OffsetCache) Resolved() int { return c.resolved }

// Complete reports whether every position is resolved.
func (c *OffsetCache) Complete() bool { return c.resolved == c.depth }

// Offsets returns a copy of the resolved prefix.
func (c *OffsetCache) Offsets() []uint64 {
	return append([]uint64(nil), c.offsets[:c.resolved]...)
}

// Offset returns the offset at a resolved position.
func (c *OffsetCache) Offset(i int) (uint64, bool) {
	if i < 0 || i >= c.resolved {
		return 0, false
	}
	return c.offsets[i], true
}

// ResolveNext resolves the first unresolved position by asking meta for the
// offset of field on cls, the class of the object at that position.
func (c *OffsetCache) ResolveNext(meta Metadata, cls Class, field string) (uint64, error) {
	if c.Complete() {
		return 0, errors.New("offset cache already complete")
	}
	off, err := meta.FieldOffset(cls, field)
	if err != nil {
		return 0, fmt.Errorf("couldn't get field %q from class %s: %w", field, cls, err)
	}
	c.offsets[c.resolved] = off
	c.resolved++
	return off, nil
}

// Reset discards every resolved offset. Nothing calls this automatically;
// it exists for owners that know the class layout was reloaded.
func (c *OffsetCache) Reset() {
	c.resolved = 0
}

// resolveChain advances cache as far as it can, starting from the object at
// position 0. Already-resolved positions are only dereferenced, never looked
// up again. firstClass, when non-nil, supplies the class of position 0
// instead of asking the metadata.
func resolveChain(rt *Runtime, cache *OffsetCache, start memory.Address, fields []string, firstClass *Class) error {
	if cache.Complete() {
		return nil
	}

	cur := start
	for i := 0; i < cache.resolved; i++ {
		next, err := deref(rt, cur, cache.offsets[i])
		if err != nil {
			return fmt.Errorf("couldn't dereference with already resolved offset at %q: %w", fields[i], err)
		}
		cur = next
	}

	for i := cache.resolved; i < cache.depth; i++ {
		var cls Class
		if i == 0 && firstClass != nil {
			cls = *firstClass
		} else {
			var err error
			cls, err = rt.Meta.ClassOf(cur)
			if err != nil {
				return fmt.Errorf("couldn't get class from object %s at %q: %w", cur, fields[i], err)
			}
		}

		off, err := cache.ResolveNext(rt.Meta, cls, fields[i])
		if err != nil {
			return err
		}

		// The last position is read, not dereferenced.
		if i == cache.depth-1 {
			break
		}
		next, err := deref(rt, cur, off)
		if err != nil {
			return fmt.Errorf("couldn't dereference with retrieved offset at %q: %w", fields[i], err)
		}
		cur = next
	}
	return nil
}

func deref(rt *Runtime, obj memory.Address, off uint64) (memory.Address, error) {
	next, err := memory.ReadPointer(rt.Memory, obj.Add(off), rt.Width)
	if err != nil {
		return 0, err
	}
	if next.IsNull() {
		return 0, fmt.Errorf("%w at %s", memory.ErrNullPointer, obj.Add(off))
	}
	return next, nil
}
