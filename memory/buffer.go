package memory

import (
	"fmt"
	"sort"
)

// Buffer is a MemoryReader over a single contiguous region, typically a
// captured dump or a hand-built image in tests.
type Buffer struct {
	// Base is the address of Data[0].
	Base Address
	// Data holds the region contents.
	Data []byte
}

// NewBuffer creates a buffer for the given address range.
func NewBuffer(base Address, data []byte) *Buffer {
	return &Buffer{Base: base, Data: data}
}

// ReadMemory implements MemoryReader. Reads that run past the end of the
// region fail; there are no partial reads.
func (b *Buffer) ReadMemory(addr Address, buf []byte) error {
	if addr < b.Base {
		return fmt.Errorf("address %s is before buffer base %s", addr, b.Base)
	}
	offset := uint64(addr - b.Base)
	if offset >= uint64(len(b.Data)) {
		return fmt.Errorf("address %s is beyond buffer range (%s - %s)", addr, b.Base, b.End())
	}
	if offset+uint64(len(buf)) > uint64(len(b.Data)) {
		return fmt.Errorf("read of %d bytes at %s runs past buffer end %s", len(buf), addr, b.End())
	}
	copy(buf, b.Data[offset:])
	return nil
}

// Contains checks if the given address falls within this buffer's range.
func (b *Buffer) Contains(addr Address) bool {
	return addr >= b.Base && uint64(addr-b.Base) < uint64(len(b.Data))
}

// End returns the address immediately after the last byte in this buffer.
func (b *Buffer) End() Address {
	return b.Base.Add(uint64(len(b.Data)))
}

// Regions is a MemoryReader spanning several non-overlapping buffers.
type Regions struct {
	regions []*Buffer
}

// NewRegions creates an empty multi-region reader.
func NewRegions(bufs ...*Buffer) *Regions {
	r := &Regions{}
	for _, b := range bufs {
		r.Add(b)
	}
	return r
}

// Add inserts a region, keeping regions ordered by base address.
func (r *Regions) Add(b *Buffer) {
	r.regions = append(r.regions, b)
	sort.Slice(r.regions, func(i, j int) bool {
		return r.regions[i].Base < r.regions[j].Base
	})
}

// ReadMemory implements MemoryReader.
func (r *Regions) ReadMemory(addr Address, buf []byte) error {
	for _, region := range r.regions {
		if region.Contains(addr) {
			return region.ReadMemory(addr, buf)
		}
	}
	return fmt.Errorf("address %s not found in any memory region", addr)
}
