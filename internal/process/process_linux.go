//go:build linux

package process

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"unsafe"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"memwatch/memory"
)

// Find attaches to the first running process whose name matches one of
// names, in process-list order.
func Find(names ...string) (*Process, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}
	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil {
			continue
		}
		exe, _ := p.Executable()
		if _, ok := matchName(names, comm, exe); ok {
			return open(fs, p)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNotFound, names)
}

// Open attaches to pid.
func Open(pid int) (*Process, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	p, err := fs.Proc(pid)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %w", ErrNotFound, pid, err)
	}
	return open(fs, p)
}

func open(fs procfs.FS, p procfs.Proc) (*Process, error) {
	comm, err := p.Comm()
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %w", ErrNotFound, p.PID, err)
	}
	exe, _ := p.Executable()

	maps, err := p.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("pid %d: read maps: %w", p.PID, err)
	}

	pid := p.PID
	return &Process{
		PID:     pid,
		Name:    comm,
		Exe:     exe,
		modules: modulesFromMaps(maps),
		read: func(addr memory.Address, buf []byte) error {
			return readRemote(pid, addr, buf)
		},
		alive: func() bool {
			proc, err := fs.Proc(pid)
			if err != nil {
				return false
			}
			stat, err := proc.Stat()
			if err != nil {
				return false
			}
			return stat.State != "Z" && stat.State != "X"
		},
	}, nil
}

// modulesFromMaps folds the mappings of each file into one range.
func modulesFromMaps(maps []*procfs.ProcMap) []Module {
	var mods []Module
	index := map[string]int{}
	for _, m := range maps {
		if m.Pathname == "" || m.Pathname[0] != '/' {
			continue
		}
		start, end := memory.Address(m.StartAddr), memory.Address(m.EndAddr)
		if i, ok := index[m.Pathname]; ok {
			mods[i].Start = min(mods[i].Start, start)
			mods[i].End = max(mods[i].End, end)
			continue
		}
		index[m.Pathname] = len(mods)
		mods = append(mods, Module{
			Name:  filepath.Base(m.Pathname),
			Path:  m.Pathname,
			Start: start,
			End:   end,
		})
	}
	slices.SortFunc(mods, func(a, b Module) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	return mods
}

func readRemote(pid int, addr memory.Address, buf []byte) error {
	local := []unix.Iovec{{Base: unsafe.SliceData(buf)}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(pid, local, remote, 0)
	switch {
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("pid %d: %w", pid, errClosed)
	case err != nil:
		return fmt.Errorf("read %d bytes at %s: %w", len(buf), addr, err)
	case n != len(buf):
		return fmt.Errorf("short read at %s: %d of %d bytes", addr, n, len(buf))
	}
	return nil
}
