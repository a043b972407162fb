package memacc

import (
	"fmt"
	"io"
	"sync"

	"memwatch/memory"
)

// Mapper routes reads to the accessor covering each address. It implements
// memory.MemoryReader; a read spanning adjacent accessors is split between
// them.
type Mapper struct {
	mu        sync.Mutex
	accessors []Accessor
	accCurr   Accessor
	cache     *Cache
}

func NewMapper() *Mapper {
	return &Mapper{cache: NewCache()}
}

// EnableCaching controls the page cache. The cache must be invalidated
// whenever the backing memory may have changed; for live targets that is
// every tick.
func (m *Mapper) EnableCaching(enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.EnableCaching(enable)
}

// SetCacheSizes forwards to the cache.
func (m *Mapper) SetCacheSizes(pageSize, numPages int, errOnLimit bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.SetCacheSizes(pageSize, numPages, errOnLimit)
}

// InvalidateCache drops every cached page.
func (m *Mapper) InvalidateCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.InvalidateAll()
}

// CacheStats returns the cache hit and miss counts.
func (m *Mapper) CacheStats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Stats()
}

// AddAccessor registers acc. Ranges may not overlap.
func (m *Mapper) AddAccessor(acc Accessor) error {
	start, end := acc.Range()
	if start > end {
		return fmt.Errorf("%w: %s", ErrInvalidRange, acc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accessors {
		if overlaps(existing, acc) {
			return fmt.Errorf("%w: %s and %s", ErrOverlap, existing, acc)
		}
	}
	m.accessors = append(m.accessors, acc)
	return nil
}

// RemoveAccessor unregisters acc.
func (m *Mapper) RemoveAccessor(acc Accessor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.accessors {
		if a == acc {
			m.accessors = append(m.accessors[:i], m.accessors[i+1:]...)
			if m.accCurr == acc {
				m.accCurr = nil
			}
			m.cache.InvalidateAll()
			return nil
		}
	}
	return fmt.Errorf("accessor not registered: %s", acc)
}

// RemoveAllAccessors unregisters every accessor, closing those that hold
// files.
func (m *Mapper) RemoveAllAccessors() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, acc := range m.accessors {
		if c, ok := acc.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	m.accessors = nil
	m.accCurr = nil
	m.cache.InvalidateAll()
	return firstErr
}

// Accessors returns the registered accessors.
func (m *Mapper) Accessors() []Accessor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Accessor(nil), m.accessors...)
}

func (m *Mapper) findAccessor(addr memory.Address) bool {
	if m.accCurr != nil && inRange(m.accCurr, addr) {
		return true
	}
	for _, acc := range m.accessors {
		if inRange(acc, addr) {
			m.accCurr = acc
			return true
		}
	}
	return false
}

// ReadMemory fills buf from addr. Unmapped bytes anywhere in the span fail
// the whole read.
func (m *Mapper) ReadMemory(addr memory.Address, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := addr
	for len(buf) > 0 {
		if !m.findAccessor(cur) {
			return fmt.Errorf("%w: %s", ErrNoAccessor, cur)
		}
		n, err := m.cache.read(m.accCurr, cur, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w at %s", ErrShortRead, cur)
		}
		buf = buf[n:]
		cur += memory.Address(n)
	}
	return nil
}
