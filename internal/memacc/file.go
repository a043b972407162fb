package memacc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"memwatch/memory"
)

type fileRegion struct {
	BaseAccessor
	fileOffset int64
}

// FileAccessor serves one or more address ranges from a file.
type FileAccessor struct {
	BaseAccessor
	filePath string
	file     *os.File
	fileSize int64
	regions  []fileRegion
	mu       sync.Mutex
}

// NewFileAccessor maps size bytes of path starting at offset to startAddr.
// A zero size maps the rest of the file from offset.
func NewFileAccessor(path string, startAddr memory.Address, offset, size int64) (*FileAccessor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file access error: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	fa := &FileAccessor{
		BaseAccessor: BaseAccessor{AccType: TypeFile},
		filePath:     path,
		file:         f,
		fileSize:     info.Size(),
	}
	if size == 0 {
		size = fa.fileSize - offset
	}
	if err := fa.AddOffsetRange(startAddr, size, offset); err != nil {
		f.Close()
		return nil, err
	}
	return fa, nil
}

// AddOffsetRange maps size bytes at file offset to startAddr.
func (f *FileAccessor) AddOffsetRange(startAddr memory.Address, size, offset int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if size <= 0 {
		return fmt.Errorf("%w: empty region in %s", ErrInvalidRange, f.filePath)
	}
	if offset < 0 || offset+size > f.fileSize {
		return fmt.Errorf("%w: range exceeds file size of %s", ErrInvalidRange, f.filePath)
	}

	region := fileRegion{
		BaseAccessor: BaseAccessor{
			StartAddress: startAddr,
			EndAddress:   startAddr + memory.Address(size) - 1,
			AccType:      TypeFile,
		},
		fileOffset: offset,
	}
	for _, r := range f.regions {
		if region.StartAddress <= r.EndAddress && r.StartAddress <= region.EndAddress {
			return fmt.Errorf("%w: %s", ErrOverlap, region.String())
		}
	}
	f.regions = append(f.regions, region)
	sort.Slice(f.regions, func(i, j int) bool {
		return f.regions[i].StartAddress < f.regions[j].StartAddress
	})

	f.StartAddress = f.regions[0].StartAddress
	f.EndAddress = f.regions[0].EndAddress
	for _, r := range f.regions[1:] {
		f.EndAddress = max(f.EndAddress, r.EndAddress)
	}
	return nil
}

func (f *FileAccessor) ReadAt(addr memory.Address, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, reg := range f.regions {
		if !reg.AddrInRange(addr) {
			continue
		}
		n := reg.BytesInRange(addr, len(buf))
		readOffset := int64(addr-reg.StartAddress) + reg.fileOffset
		got, err := f.file.ReadAt(buf[:n], readOffset)
		if err != nil && !errors.Is(err, io.EOF) {
			return got, err
		}
		return got, nil
	}
	return 0, fmt.Errorf("%w: %s in %s", ErrNoAccessor, addr, f.filePath)
}

func (f *FileAccessor) Close() error {
	return f.file.Close()
}

func (f *FileAccessor) String() string {
	return fmt.Sprintf("%s\nFilename=%s", f.BaseAccessor.String(), f.filePath)
}
