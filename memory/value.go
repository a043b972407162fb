package memory

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Address32 is a pointer-sized value read from a 32-bit target.
type Address32 uint32

func (a Address32) String() string { return fmt.Sprintf("0x%X", uint32(a)) }

// Address converts a to the generic Address type.
func (a Address32) Address() Address { return Address(a) }

// Address64 is a pointer-sized value read from a 64-bit target.
type Address64 uint64

func (a Address64) String() string { return fmt.Sprintf("0x%X", uint64(a)) }

// Address converts a to the generic Address type.
func (a Address64) Address() Address { return Address(a) }

// CStringSize is the capacity of a CString buffer.
const CStringSize = 128

// CString is a fixed-capacity, NUL-terminated byte string as stored inline
// in the target.
type CString [CStringSize]byte

// String returns the bytes up to the first NUL.
func (s CString) String() string {
	if i := bytes.IndexByte(s[:], 0); i >= 0 {
		return string(s[:i])
	}
	return string(s[:])
}

// Matches reports whether s holds exactly str.
func (s CString) Matches(str string) bool {
	return s.String() == str
}

// MakeCString builds a CString from str, truncating to capacity-1 bytes.
func MakeCString(str string) CString {
	var s CString
	copy(s[:CStringSize-1], str)
	return s
}

// SizeOf returns the encoded size of T, or an error when T has no fixed
// binary layout.
func SizeOf[T any]() (int, error) {
	var v T
	n := binary.Size(v)
	if n < 0 {
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return n, nil
}

// Decode interprets b as a little-endian T. Struct types are decoded with
// no implicit padding; use blank array fields to skip gaps.
func Decode[T any](b []byte) (T, error) {
	var v T
	if _, err := binary.Decode(b, binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// Read performs one composite read of a T through r.
func Read[T any](r Readable, base Address, width PointerWidth, offsets []uint64) (T, error) {
	var zero T
	n, err := SizeOf[T]()
	if err != nil {
		return zero, err
	}
	buf := make([]byte, n)
	if err := r.ReadPointerPath(base, width, offsets, buf); err != nil {
		return zero, err
	}
	return Decode[T](buf)
}
