package memory

import (
	"encoding/binary"
	"fmt"
)

// WalkPointerPath implements the Readable contract on top of a raw reader.
func WalkPointerPath(r MemoryReader, base Address, width PointerWidth, offsets []uint64, buf []byte) error {
	if len(offsets) == 0 {
		return &ReadError{Base: base, Addr: base, Err: ErrEmptyPath}
	}
	if !width.Valid() {
		return &ReadError{Base: base, Offsets: offsets, Addr: base, Err: fmt.Errorf("%w: %d", ErrInvalidWidth, width)}
	}

	var ptr [8]byte
	cur := base
	last := len(offsets) - 1
	for i, off := range offsets[:last] {
		at := cur.Add(off)
		if err := r.ReadMemory(at, ptr[:width]); err != nil {
			return &ReadError{Base: base, Offsets: offsets, Step: i, Addr: at, Err: err}
		}
		cur = decodePointer(ptr[:width])
		if cur.IsNull() {
			return &ReadError{Base: base, Offsets: offsets, Step: i, Addr: at, Err: ErrNullPointer}
		}
	}

	if len(buf) == 0 {
		return nil
	}
	at := cur.Add(offsets[last])
	if err := r.ReadMemory(at, buf); err != nil {
		return &ReadError{Base: base, Offsets: offsets, Step: last, Addr: at, Err: err}
	}
	return nil
}

func decodePointer(b []byte) Address {
	if len(b) == 4 {
		return Address(binary.LittleEndian.Uint32(b))
	}
	return Address(binary.LittleEndian.Uint64(b))
}

// chained walks pointer paths over a MemoryReader.
type chained struct {
	r MemoryReader
}

// Chain adapts a raw MemoryReader into a Readable.
func Chain(r MemoryReader) Readable {
	return chained{r: r}
}

func (c chained) ReadPointerPath(base Address, width PointerWidth, offsets []uint64, buf []byte) error {
	return WalkPointerPath(c.r, base, width, offsets, buf)
}

func (c chained) ReadMemory(addr Address, buf []byte) error {
	return c.r.ReadMemory(addr, buf)
}

// ReadPointer dereferences the pointer stored at addr.
func ReadPointer(r Readable, addr Address, width PointerWidth) (Address, error) {
	var ptr [8]byte
	if !width.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	if err := r.ReadPointerPath(addr, width, []uint64{0}, ptr[:width]); err != nil {
		return 0, err
	}
	return decodePointer(ptr[:width]), nil
}
