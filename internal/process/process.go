// Package process attaches to a live target process and reads its memory.
package process

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"memwatch/memory"
)

// ErrNotFound is returned when no running process matches.
var ErrNotFound = errors.New("process not found")

// ErrModuleNotFound is returned when the process has no such module mapped.
var ErrModuleNotFound = errors.New("module not found")

// commLen is the kernel's limit on a task's comm name, without the NUL.
const commLen = 15

// Module is the address range a mapped file occupies in the target.
type Module struct {
	Name  string
	Path  string
	Start memory.Address
	End   memory.Address
}

// Size returns the number of bytes between Start and End.
func (m Module) Size() uint64 { return uint64(m.End - m.Start) }

func (m Module) String() string {
	return fmt.Sprintf("%s [%s, %s)", m.Name, m.Start, m.End)
}

// Process is an attached target. It implements memory.MemoryReader and
// memory.Readable and reports liveness until closed.
type Process struct {
	PID  int
	Name string
	Exe  string

	modules []Module
	read    func(addr memory.Address, buf []byte) error
	alive   func() bool
	closed  atomic.Bool
}

// Modules returns the modules mapped at attach time.
func (p *Process) Modules() []Module {
	return append([]Module(nil), p.modules...)
}

// Module finds a mapped module by file name, ignoring case.
func (p *Process) Module(name string) (Module, error) {
	for _, m := range p.modules {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return Module{}, fmt.Errorf("%w: %s in pid %d", ErrModuleNotFound, name, p.PID)
}

// MainModule returns the module of the process executable.
func (p *Process) MainModule() (Module, error) {
	return p.Module(filepath.Base(p.Exe))
}

// ReadMemory reads exactly len(buf) bytes at addr.
func (p *Process) ReadMemory(addr memory.Address, buf []byte) error {
	if p.closed.Load() {
		return fmt.Errorf("pid %d: %w", p.PID, errClosed)
	}
	if len(buf) == 0 {
		return nil
	}
	return p.read(addr, buf)
}

func (p *Process) ReadPointerPath(base memory.Address, width memory.PointerWidth, offsets []uint64, buf []byte) error {
	return memory.WalkPointerPath(p, base, width, offsets, buf)
}

// IsOpen reports whether the process is still running.
func (p *Process) IsOpen() bool {
	return !p.closed.Load() && p.alive()
}

// Close detaches. Reads fail afterwards.
func (p *Process) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *Process) String() string {
	return fmt.Sprintf("%s (pid %d)", p.Name, p.PID)
}

var errClosed = errors.New("process handle closed")

// matchName reports whether a process with the given comm and executable
// path is one of names. Comparison ignores case; comm is compared against
// the truncated name since the kernel keeps only the first 15 bytes.
func matchName(names []string, comm, exe string) (string, bool) {
	base := filepath.Base(exe)
	for _, n := range names {
		if exe != "" && strings.EqualFold(base, n) {
			return n, true
		}
		short := n
		if len(short) > commLen {
			short = short[:commLen]
		}
		if strings.EqualFold(comm, short) {
			return n, true
		}
	}
	return "", false
}
