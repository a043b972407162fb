package memacc

import (
	"fmt"

	"memwatch/memory"
)

// BufferAccessor serves a range from a byte slice.
type BufferAccessor struct {
	BaseAccessor
	Buffer []byte
}

// NewBufferAccessor creates a new buffer accessor.
func NewBufferAccessor(startAddr memory.Address, buffer []byte) *BufferAccessor {
	b := &BufferAccessor{}
	b.InitAccessor(startAddr, buffer)
	return b
}

// InitAccessor re-initializes the accessor with new values.
func (b *BufferAccessor) InitAccessor(startAddr memory.Address, buffer []byte) {
	b.BaseAccessor = BaseAccessor{
		StartAddress: startAddr,
		EndAddress:   startAddr + memory.Address(len(buffer)) - 1,
		AccType:      TypeBuffer,
	}
	b.Buffer = buffer
}

func (b *BufferAccessor) ReadAt(addr memory.Address, buf []byte) (int, error) {
	n := b.BytesInRange(addr, len(buf))
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoAccessor, addr)
	}
	off := addr - b.StartAddress
	return copy(buf[:n], b.Buffer[off:]), nil
}
