package memacc

import (
	"errors"
	"fmt"

	"memwatch/memory"
)

// CallbackFn reads len(buf) bytes at addr from wherever the range really
// lives.
type CallbackFn func(addr memory.Address, buf []byte) error

// CallbackAccessor forwards reads to a function, e.g. into the memory of
// another process.
type CallbackAccessor struct {
	BaseAccessor
	CBFn CallbackFn
}

// NewCallbackAccessor creates a new callback accessor.
func NewCallbackAccessor(startAddr, endAddr memory.Address, fn CallbackFn) *CallbackAccessor {
	return &CallbackAccessor{
		BaseAccessor: BaseAccessor{
			StartAddress: startAddr,
			EndAddress:   endAddr,
			AccType:      TypeCallback,
		},
		CBFn: fn,
	}
}

// Translate returns a callback that reads guest addresses from host memory
// at host + (addr - guestStart).
func Translate(host memory.MemoryReader, guestStart, hostStart memory.Address) CallbackFn {
	return func(addr memory.Address, buf []byte) error {
		return host.ReadMemory(hostStart+(addr-guestStart), buf)
	}
}

func (c *CallbackAccessor) ReadAt(addr memory.Address, buf []byte) (int, error) {
	n := c.BytesInRange(addr, len(buf))
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoAccessor, addr)
	}
	if c.CBFn == nil {
		return 0, errors.New("callback not set")
	}
	if err := c.CBFn(addr, buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}
