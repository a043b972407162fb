// Package gba reads Game Boy Advance guest memory out of an emulator
// process.
//
// Guest pointers are 32 bits wide whatever the caller asks for, and every
// offset is truncated to 32 bits before use.
package gba

import (
	"fmt"

	"memwatch/internal/memacc"
	"memwatch/memory"
)

// Guest memory regions.
const (
	EWRAMStart memory.Address = 0x02000000
	EWRAMSize                 = 0x40000
	IWRAMStart memory.Address = 0x03000000
	IWRAMSize                 = 0x8000
)

// Emulator is a memory.Readable over guest addresses. Reads go through a
// page cache; call Invalidate once per tick.
type Emulator struct {
	mapper *memacc.Mapper
}

// New maps EWRAM and IWRAM onto the host addresses where the emulator keeps
// them.
func New(host memory.MemoryReader, ewramHost, iwramHost memory.Address) (*Emulator, error) {
	m := memacc.NewMapper()
	regions := []struct {
		guest memory.Address
		size  int
		host  memory.Address
	}{
		{EWRAMStart, EWRAMSize, ewramHost},
		{IWRAMStart, IWRAMSize, iwramHost},
	}
	for _, r := range regions {
		if r.host.IsNull() {
			return nil, fmt.Errorf("no host address for guest region %s", r.guest)
		}
		acc := memacc.NewCallbackAccessor(r.guest, r.guest+memory.Address(r.size)-1, memacc.Translate(host, r.guest, r.host))
		if err := m.AddAccessor(acc); err != nil {
			return nil, err
		}
	}
	return FromMapper(m), nil
}

// FromMapper wraps a mapper that already serves guest addresses, e.g. one
// loaded from memory dumps.
func FromMapper(m *memacc.Mapper) *Emulator {
	m.EnableCaching(true)
	return &Emulator{mapper: m}
}

func (e *Emulator) ReadPointerPath(base memory.Address, _ memory.PointerWidth, offsets []uint64, buf []byte) error {
	truncated := make([]uint64, len(offsets))
	for i, off := range offsets {
		truncated[i] = uint64(uint32(off))
	}
	err := memory.WalkPointerPath(guestReader{e.mapper}, memory.Address(uint32(base)), memory.Width32, truncated, buf)
	if err != nil {
		return fmt.Errorf("unable to read value from guest pointer path: %w", err)
	}
	return nil
}

// ReadMemory reads guest memory directly.
func (e *Emulator) ReadMemory(addr memory.Address, buf []byte) error {
	return guestReader{e.mapper}.ReadMemory(addr, buf)
}

// Invalidate drops cached guest pages.
func (e *Emulator) Invalidate() {
	e.mapper.InvalidateCache()
}

// guestReader wraps addresses around 32 bits the way the guest CPU does.
type guestReader struct {
	r memory.MemoryReader
}

func (g guestReader) ReadMemory(addr memory.Address, buf []byte) error {
	return g.r.ReadMemory(memory.Address(uint32(addr)), buf)
}
