// Package memacc maps target address ranges onto backing stores (buffers,
// files, callbacks into another address space) and reads through them with
// an optional page cache.
package memacc

import (
	"errors"
	"fmt"

	"memwatch/memory"
)

// Type describes the storage type of the underlying memory accessor.
type Type int

const (
	TypeUnknown Type = iota
	TypeFile         // Binary data file accessor
	TypeBuffer       // Memory buffer accessor
	TypeCallback     // Callback accessor - use for live memory access
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "File"
	case TypeBuffer:
		return "Buffer"
	case TypeCallback:
		return "Callback"
	default:
		return "Unknown"
	}
}

var (
	ErrOverlap      = errors.New("memory accessor overlap")
	ErrInvalidRange = errors.New("invalid accessor range")
	ErrNoAccessor   = errors.New("no accessor for address")
	ErrShortRead    = errors.New("short read")
)

// Accessor reads one contiguous, inclusive address range.
type Accessor interface {
	// Range returns the first and last addresses served.
	Range() (start, end memory.Address)

	// ReadAt fills buf from addr and returns the bytes read. Reads never
	// cross the end of the range.
	ReadAt(addr memory.Address, buf []byte) (int, error)

	Type() Type
	String() string
}

// BaseAccessor implements the range logic shared by accessors.
type BaseAccessor struct {
	StartAddress memory.Address
	EndAddress   memory.Address
	AccType      Type
}

func (b *BaseAccessor) Range() (memory.Address, memory.Address) {
	return b.StartAddress, b.EndAddress
}

func (b *BaseAccessor) Type() Type {
	return b.AccType
}

func (b *BaseAccessor) AddrInRange(addr memory.Address) bool {
	return addr >= b.StartAddress && addr <= b.EndAddress
}

// BytesInRange returns how many of reqBytes starting at addr fall inside the
// range.
func (b *BaseAccessor) BytesInRange(addr memory.Address, reqBytes int) int {
	if !b.AddrInRange(addr) || reqBytes <= 0 {
		return 0
	}
	avail := uint64(b.EndAddress-addr) + 1
	if avail > uint64(reqBytes) {
		return reqBytes
	}
	return int(avail)
}

// ValidateRange checks the range is non-empty.
func (b *BaseAccessor) ValidateRange() error {
	if b.StartAddress > b.EndAddress {
		return fmt.Errorf("%w: 0x%X - 0x%X", ErrInvalidRange, uint64(b.StartAddress), uint64(b.EndAddress))
	}
	return nil
}

func (b *BaseAccessor) String() string {
	return fmt.Sprintf("Range: 0x%X - 0x%X; Type: %s", uint64(b.StartAddress), uint64(b.EndAddress), b.AccType)
}

func overlaps(a, b Accessor) bool {
	as, ae := a.Range()
	bs, be := b.Range()
	return as <= be && bs <= ae
}

func inRange(acc Accessor, addr memory.Address) bool {
	s, e := acc.Range()
	return addr >= s && addr <= e
}
