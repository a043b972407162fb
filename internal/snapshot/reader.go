package snapshot

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"memwatch/internal/logging"
	"memwatch/internal/memacc"
	"memwatch/memory"
)

// Image is a loaded snapshot: the dump files mapped by address behind a
// memacc.Mapper. It satisfies driver.Handle so a snapshot can stand in for a
// live target.
type Image struct {
	Snapshot *Snapshot
	Dir      string

	mapper *memacc.Mapper
	mem    memory.Readable
	closed atomic.Bool
}

// Open loads dir/snapshot.ini and maps every dump it names.
func Open(dir string, log logging.Logger) (*Image, error) {
	log = logging.OrNoOp(log)
	s, err := Load(dir)
	if err != nil {
		return nil, err
	}

	m := memacc.NewMapper()
	m.EnableCaching(true)
	for _, d := range s.Dumps {
		path := d.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		acc, err := memacc.NewFileAccessor(path, d.Address, int64(d.Offset), int64(d.Length))
		if err != nil {
			m.RemoveAllAccessors()
			return nil, fmt.Errorf("[%s]: %w", d.Section, err)
		}
		if err := m.AddAccessor(acc); err != nil {
			acc.Close()
			m.RemoveAllAccessors()
			return nil, fmt.Errorf("[%s]: %w", d.Section, err)
		}
		log.Debug("mapped dump", "section", d.Section, "file", d.File, "range", acc.BaseAccessor.String())
	}
	log.Info("snapshot loaded", "dir", dir, "dumps", len(s.Dumps), "width", s.Width)

	return &Image{
		Snapshot: s,
		Dir:      dir,
		mapper:   m,
		mem:      memory.Chain(m),
	}, nil
}

// Width returns the pointer width recorded in the snapshot.
func (img *Image) Width() memory.PointerWidth { return img.Snapshot.Width }

// Module returns the recorded base address of a module.
func (img *Image) Module(name string) (memory.Address, bool) {
	return img.Snapshot.Module(name)
}

// Mapper returns the mapper serving the dumps.
func (img *Image) Mapper() *memacc.Mapper { return img.mapper }

// HasSpace reports whether any dump was captured in space.
func (img *Image) HasSpace(space string) bool {
	for _, d := range img.Snapshot.Dumps {
		if d.Space == space {
			return true
		}
	}
	return false
}

// ReadMemory reads raw bytes from the mapped dumps.
func (img *Image) ReadMemory(addr memory.Address, buf []byte) error {
	return img.mapper.ReadMemory(addr, buf)
}

func (img *Image) ReadPointerPath(base memory.Address, width memory.PointerWidth, offsets []uint64, buf []byte) error {
	return img.mem.ReadPointerPath(base, width, offsets, buf)
}

// Invalidate drops cached pages.
func (img *Image) Invalidate() {
	img.mapper.InvalidateCache()
}

func (img *Image) IsOpen() bool { return !img.closed.Load() }

// Close unmaps the dumps and closes their files.
func (img *Image) Close() error {
	if img.closed.Swap(true) {
		return nil
	}
	return img.mapper.RemoveAllAccessors()
}
