package memacc

import (
	"fmt"

	"memwatch/memory"
)

const (
	DefaultPageSize = 2048
	DefaultNumPages = 16
	MaxPageSize     = 16384
	MaxPages        = 256
	MinPageSize     = 64
	MinPages        = 4
)

type cachePage struct {
	start    memory.Address
	validLen int
	data     []byte
	useSeq   uint32
}

// Cache holds recently read pages. Pages are aligned to the page size and
// evicted least recently used first.
type Cache struct {
	pages    []cachePage
	pageSize int
	numPages int
	seq      uint32
	enabled  bool
	mruIdx   int

	hits, misses uint64
}

func NewCache() *Cache {
	return &Cache{
		pageSize: DefaultPageSize,
		numPages: DefaultNumPages,
		seq:      1,
	}
}

func (c *Cache) EnableCaching(enable bool) {
	c.enabled = enable
	if enable && c.pages == nil {
		c.createPages()
	}
	if !enable {
		c.InvalidateAll()
	}
}

func (c *Cache) Enabled() bool {
	return c.enabled
}

func (c *Cache) enabledForSize(reqSize int) bool {
	return c.enabled && reqSize <= c.pageSize
}

// SetCacheSizes changes the geometry. Out-of-limit values are clamped, or
// rejected when errOnLimit is set. pageSize must be a power of two.
func (c *Cache) SetCacheSizes(pageSize, numPages int, errOnLimit bool) error {
	if pageSize&(pageSize-1) != 0 {
		return fmt.Errorf("page size %d is not a power of two", pageSize)
	}
	if pageSize < MinPageSize || pageSize > MaxPageSize || numPages < MinPages || numPages > MaxPages {
		if errOnLimit {
			return fmt.Errorf("cache geometry %dx%d out of limits", numPages, pageSize)
		}
		pageSize = min(max(pageSize, MinPageSize), MaxPageSize)
		numPages = min(max(numPages, MinPages), MaxPages)
	}
	c.pageSize = pageSize
	c.numPages = numPages
	c.pages = nil
	if c.enabled {
		c.createPages()
	}
	return nil
}

func (c *Cache) createPages() {
	c.pages = make([]cachePage, c.numPages)
	for i := range c.pages {
		c.pages[i].data = make([]byte, c.pageSize)
	}
	c.mruIdx = 0
}

// InvalidateAll drops every page.
func (c *Cache) InvalidateAll() {
	for i := range c.pages {
		c.pages[i].validLen = 0
		c.pages[i].useSeq = 0
	}
	c.mruIdx = 0
}

// Stats returns the hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}

func (c *Cache) pageHolds(idx int, addr memory.Address, n int) bool {
	p := &c.pages[idx]
	if p.validLen == 0 {
		return false
	}
	return addr >= p.start && uint64(addr-p.start)+uint64(n) <= uint64(p.validLen)
}

func (c *Cache) findPage(addr memory.Address, n int) (int, bool) {
	for i := 0; i < len(c.pages); i++ {
		idx := (c.mruIdx + i) % len(c.pages)
		if c.pageHolds(idx, addr, n) {
			c.mruIdx = idx
			return idx, true
		}
	}
	return -1, false
}

func (c *Cache) nextPageIndex() int {
	oldest := 0
	for i := range c.pages {
		if c.pages[i].useSeq == 0 {
			return i
		}
		if c.pages[i].useSeq < c.pages[oldest].useSeq {
			oldest = i
		}
	}
	return oldest
}

// read fills buf from acc through the cache. It returns the bytes copied,
// which is fewer than len(buf) only when acc's range ends first.
func (c *Cache) read(acc Accessor, addr memory.Address, buf []byte) (int, error) {
	if !c.enabledForSize(len(buf)) {
		return acc.ReadAt(addr, buf)
	}

	if idx, ok := c.findPage(addr, len(buf)); ok {
		c.hits++
		p := &c.pages[idx]
		p.useSeq = c.seq
		c.seq++
		return copy(buf, p.data[addr-p.start:]), nil
	}
	c.misses++

	pageBase := addr &^ memory.Address(c.pageSize-1)
	start, end := acc.Range()
	if pageBase < start {
		pageBase = start
	}
	want := c.pageSize - int(pageBase%memory.Address(c.pageSize))
	if avail := uint64(end-pageBase) + 1; avail < uint64(want) {
		want = int(avail)
	}

	idx := c.nextPageIndex()
	p := &c.pages[idx]
	p.validLen = 0
	got, err := acc.ReadAt(pageBase, p.data[:want])
	if err != nil {
		return 0, err
	}
	p.start = pageBase
	p.validLen = got
	p.useSeq = c.seq
	c.seq++
	c.mruIdx = idx

	if addr < p.start || addr >= p.start+memory.Address(p.validLen) {
		return 0, fmt.Errorf("%w at %s", ErrShortRead, addr)
	}
	return copy(buf, p.data[addr-p.start:p.validLen]), nil
}
