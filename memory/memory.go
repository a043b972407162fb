// Package memory defines the contract for reading typed values out of a
// foreign address space by following a base address and a chain of offsets.
//
// Backing stores differ (a live process, an emulator's guest memory, a dump
// file) but every caller above this package is written against Readable only.
package memory

import (
	"errors"
	"fmt"
	"strings"
)

// Address is a location in the target's address space.
type Address uint64

func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Add returns a + off, wrapping on overflow like the target would.
func (a Address) Add(off uint64) Address {
	return a + Address(off)
}

// IsNull reports whether a is the null address.
func (a Address) IsNull() bool {
	return a == 0
}

// PointerWidth is the size of a pointer in the target.
type PointerWidth uint8

const (
	Width32 PointerWidth = 4
	Width64 PointerWidth = 8
)

// Size returns the pointer width in bytes.
func (w PointerWidth) Size() int {
	return int(w)
}

// Valid reports whether w is a supported pointer width.
func (w PointerWidth) Valid() bool {
	return w == Width32 || w == Width64
}

func (w PointerWidth) String() string {
	switch w {
	case Width32:
		return "32-bit"
	case Width64:
		return "64-bit"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(w))
	}
}

// ParsePointerWidth accepts "32", "64", "4", "8" and the String forms.
func ParsePointerWidth(s string) (PointerWidth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "32", "4", "32-bit":
		return Width32, nil
	case "64", "8", "64-bit", "":
		return Width64, nil
	}
	return 0, fmt.Errorf("unknown pointer width %q", s)
}

// MemoryReader reads raw bytes from a backing store.
//
// ReadMemory fills buf entirely or returns an error; partial reads are
// failures. Implementations must return promptly and must not retry.
type MemoryReader interface {
	ReadMemory(addr Address, buf []byte) error
}

// MemoryReaderFunc adapts a function to MemoryReader.
type MemoryReaderFunc func(addr Address, buf []byte) error

func (f MemoryReaderFunc) ReadMemory(addr Address, buf []byte) error {
	return f(addr, buf)
}

// Readable is the capability every value source is generic over.
//
// ReadPointerPath starts at base; for every offset except the last it reads a
// pointer of the given width at cur+offset and continues from there; finally
// it reads len(buf) bytes at cur+last into buf. The base itself is never
// dereferenced before the first offset is added.
type Readable interface {
	ReadPointerPath(base Address, width PointerWidth, offsets []uint64, buf []byte) error
}

var (
	// ErrUnreadable is matched by every failed chained read.
	ErrUnreadable = errors.New("memory unreadable")

	// ErrNullPointer is returned when a dereference in a chain yields null.
	ErrNullPointer = errors.New("null pointer in chain")

	// ErrEmptyPath is returned when a chain has no offsets at all.
	ErrEmptyPath = errors.New("pointer path has no offsets")

	// ErrUnsupportedType is returned when a value type has no fixed size.
	ErrUnsupportedType = errors.New("type has no fixed binary size")

	// ErrInvalidWidth is returned for pointer widths other than 4 or 8.
	ErrInvalidWidth = errors.New("invalid pointer width")
)

// ReadError describes a failed chained read. Any failure at any step
// collapses into one ReadError; intermediate results are never exposed.
type ReadError struct {
	Base    Address
	Offsets []uint64
	// Step is the index of the offset being applied when the read failed.
	Step int
	// Addr is the address whose read failed.
	Addr Address
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read at %s failed (step %d of %s): %v", e.Addr, e.Step, DescribeChain(e.Base, e.Offsets), e.Err)
}

func (e *ReadError) Unwrap() []error {
	return []error{ErrUnreadable, e.Err}
}

// DescribeChain renders a base and offsets as "0xBASE, 0x10, 0x20".
func DescribeChain(base Address, offsets []uint64) string {
	var sb strings.Builder
	sb.WriteString(base.String())
	for _, off := range offsets {
		fmt.Fprintf(&sb, ", 0x%x", off)
	}
	return sb.String()
}
