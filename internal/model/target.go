package model

import (
	"fmt"

	"memwatch/internal/gba"
	"memwatch/internal/process"
	"memwatch/internal/snapshot"
	"memwatch/memory"
)

type processTarget struct {
	*process.Process
}

// ProcessTarget reads a live process; module bases come from its mappings.
func ProcessTarget(p *process.Process) Target {
	return processTarget{p}
}

func (t processTarget) ModuleBase(name string) (memory.Address, error) {
	m, err := t.Module(name)
	if err != nil {
		return 0, err
	}
	return m.Start, nil
}

// guestTarget is a Target that already holds emulator guest memory.
type guestTarget interface {
	Guest() (*gba.Emulator, bool)
}

type snapshotTarget struct {
	*snapshot.Image
}

// SnapshotTarget reads a loaded snapshot; module bases are those recorded
// when it was captured.
func SnapshotTarget(img *snapshot.Image) Target {
	return snapshotTarget{img}
}

func (t snapshotTarget) ModuleBase(name string) (memory.Address, error) {
	addr, ok := t.Module(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s in snapshot %s", process.ErrModuleNotFound, name, t.Dir)
	}
	return addr, nil
}

// Guest serves snapshots captured in guest address space directly.
func (t snapshotTarget) Guest() (*gba.Emulator, bool) {
	if !t.HasSpace(snapshot.SpaceGuest) {
		return nil, false
	}
	return gba.FromMapper(t.Mapper()), true
}
