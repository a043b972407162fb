package memacc

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"memwatch/memory"
)

const (
	NumBlocks      = 2
	BlockNumWords  = 8192
	BlockSizeBytes = 4 * BlockNumWords
)

var (
	ewramBlocks [NumBlocks][BlockNumWords]uint32
	iwramBlocks [NumBlocks][BlockNumWords]uint32
)

func blockVal(tag uint32, blockNum int, index int) uint32 {
	return (tag << 24) | (uint32(blockNum) << 16) | uint32(index)
}

func populateBlock(tag uint32, blocks *[NumBlocks][BlockNumWords]uint32) {
	for i := 0; i < NumBlocks; i++ {
		for j := 0; j < BlockNumWords; j++ {
			blocks[i][j] = blockVal(tag, i, j)
		}
	}
}

func init() {
	populateBlock(0x02, &ewramBlocks)
	populateBlock(0x03, &iwramBlocks)
}

func asByteSlice(blocks *[NumBlocks][BlockNumWords]uint32, blockIdx int) []byte {
	buf := make([]byte, BlockSizeBytes)
	for i := 0; i < BlockNumWords; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], blocks[blockIdx][i])
	}
	return buf
}

func readU32(t *testing.T, m *Mapper, addr memory.Address) uint32 {
	t.Helper()
	var buf [4]byte
	if err := m.ReadMemory(addr, buf[:]); err != nil {
		t.Fatalf("ReadMemory(%s) error: %v", addr, err)
	}
	return binary.LittleEndian.Uint32(buf[:])
}

func TestOverlapRegions(t *testing.T) {
	mapper := NewMapper()

	acc1 := NewBufferAccessor(0x0000, asByteSlice(&ewramBlocks, 0))
	if err := mapper.AddAccessor(acc1); err != nil {
		t.Errorf("Failed to set memory accessor: %v", err)
	}

	// Overlapping region
	acc2 := NewBufferAccessor(0x1000, asByteSlice(&ewramBlocks, 1))
	if err := mapper.AddAccessor(acc2); !errors.Is(err, ErrOverlap) {
		t.Errorf("Expected overlap error, got: %v", err)
	}

	// Non overlapping region
	acc2.InitAccessor(BlockSizeBytes, asByteSlice(&ewramBlocks, 1))
	if err := mapper.AddAccessor(acc2); err != nil {
		t.Errorf("Failed to set non overlapping memory accessor: %v", err)
	}

	if got := len(mapper.Accessors()); got != 2 {
		t.Errorf("Accessors() = %d, want 2", got)
	}
}

func TestMapper_ReadMemory(t *testing.T) {
	mapper := NewMapper()
	mapper.AddAccessor(NewBufferAccessor(0x02000000, asByteSlice(&ewramBlocks, 0)))
	mapper.AddAccessor(NewBufferAccessor(0x02000000+BlockSizeBytes, asByteSlice(&ewramBlocks, 1)))
	mapper.AddAccessor(NewBufferAccessor(0x03000000, asByteSlice(&iwramBlocks, 0)))

	for _, caching := range []bool{false, true} {
		mapper.EnableCaching(caching)

		if got := readU32(t, mapper, 0x02000000); got != ewramBlocks[0][0] {
			t.Errorf("caching=%v: read 0x%X, want 0x%X", caching, got, ewramBlocks[0][0])
		}
		if got := readU32(t, mapper, 0x03000010); got != iwramBlocks[0][4] {
			t.Errorf("caching=%v: read 0x%X, want 0x%X", caching, got, iwramBlocks[0][4])
		}

		// Spans the boundary between the two EWRAM accessors.
		buf := make([]byte, 8)
		if err := mapper.ReadMemory(0x02000000+BlockSizeBytes-4, buf); err != nil {
			t.Fatalf("caching=%v: spanning read failed: %v", caching, err)
		}
		if lo, hi := binary.LittleEndian.Uint32(buf), binary.LittleEndian.Uint32(buf[4:]); lo != ewramBlocks[0][BlockNumWords-1] || hi != ewramBlocks[1][0] {
			t.Errorf("caching=%v: spanning read = 0x%X 0x%X", caching, lo, hi)
		}

		// Runs off the end of IWRAM into unmapped space.
		if err := mapper.ReadMemory(0x03000000+BlockSizeBytes-2, buf[:4]); !errors.Is(err, ErrNoAccessor) {
			t.Errorf("caching=%v: expected ErrNoAccessor, got %v", caching, err)
		}
		if err := mapper.ReadMemory(0x04000000, buf[:4]); !errors.Is(err, ErrNoAccessor) {
			t.Errorf("caching=%v: expected ErrNoAccessor, got %v", caching, err)
		}
	}
}

func TestCallbackCache(t *testing.T) {
	mapper := NewMapper()
	mapper.EnableCaching(true)

	host := memory.NewBuffer(0x7f0000000000, asByteSlice(&ewramBlocks, 0))
	calls := 0
	translate := Translate(host, 0x02000000, 0x7f0000000000)
	acc := NewCallbackAccessor(0x02000000, 0x02000000+BlockSizeBytes-1, func(addr memory.Address, buf []byte) error {
		calls++
		return translate(addr, buf)
	})
	if err := mapper.AddAccessor(acc); err != nil {
		t.Fatal(err)
	}

	// Initial read - should callback and load cache
	if got := readU32(t, mapper, 0x02000000); got != ewramBlocks[0][0] || calls != 1 {
		t.Fatalf("read 0x%X with %d callbacks", got, calls)
	}

	// Next read in the same page - should use cache
	if got := readU32(t, mapper, 0x02000010); got != ewramBlocks[0][4] || calls != 1 {
		t.Fatalf("read 0x%X with %d callbacks", got, calls)
	}

	// Host memory changes; the cache still serves the old page until
	// invalidated.
	binary.LittleEndian.PutUint32(host.Data[0x10:], 0xCAFEF00D)
	if got := readU32(t, mapper, 0x02000010); got != ewramBlocks[0][4] {
		t.Errorf("read 0x%X before invalidation", got)
	}
	mapper.InvalidateCache()
	if got := readU32(t, mapper, 0x02000010); got != 0xCAFEF00D || calls != 2 {
		t.Errorf("read 0x%X with %d callbacks after invalidation", got, calls)
	}

	// A different page is a new callback.
	if got := readU32(t, mapper, 0x02000000+DefaultPageSize); got != ewramBlocks[0][DefaultPageSize/4] || calls != 3 {
		t.Errorf("read 0x%X with %d callbacks", got, calls)
	}

	hits, misses := mapper.CacheStats()
	if hits != 2 || misses != 3 {
		t.Errorf("CacheStats() = %d hits, %d misses", hits, misses)
	}
}

func TestCallbackErrors(t *testing.T) {
	mapper := NewMapper()
	errFault := errors.New("page fault")
	mapper.AddAccessor(NewCallbackAccessor(0x1000, 0x1FFF, func(memory.Address, []byte) error { return errFault }))
	mapper.AddAccessor(&CallbackAccessor{BaseAccessor: BaseAccessor{StartAddress: 0x2000, EndAddress: 0x2FFF, AccType: TypeCallback}})

	var buf [4]byte
	for _, caching := range []bool{false, true} {
		mapper.EnableCaching(caching)
		if err := mapper.ReadMemory(0x1000, buf[:]); !errors.Is(err, errFault) {
			t.Errorf("caching=%v: expected fault, got %v", caching, err)
		}
		if err := mapper.ReadMemory(0x2000, buf[:]); err == nil {
			t.Errorf("caching=%v: read through an unset callback succeeded", caching)
		}
	}
}

func TestSetCacheSizes(t *testing.T) {
	c := NewCache()
	if err := c.SetCacheSizes(100, 16, false); err == nil {
		t.Error("accepted a page size that is not a power of two")
	}
	if err := c.SetCacheSizes(32, 16, true); err == nil {
		t.Error("accepted an out of limit page size")
	}
	if err := c.SetCacheSizes(32, 1, false); err != nil {
		t.Fatal(err)
	}
	if c.pageSize != MinPageSize || c.numPages != MinPages {
		t.Errorf("geometry not clamped: %dx%d", c.numPages, c.pageSize)
	}

	c.EnableCaching(true)
	if len(c.pages) != MinPages || len(c.pages[0].data) != MinPageSize {
		t.Errorf("pages not created with the new geometry")
	}
}

func TestRemoveAccessor(t *testing.T) {
	mapper := NewMapper()
	mapper.EnableCaching(true)
	acc := NewBufferAccessor(0x1000, asByteSlice(&ewramBlocks, 0))
	mapper.AddAccessor(acc)
	readU32(t, mapper, 0x1000)

	if err := mapper.RemoveAccessor(acc); err != nil {
		t.Fatal(err)
	}
	var buf [4]byte
	if err := mapper.ReadMemory(0x1000, buf[:]); !errors.Is(err, ErrNoAccessor) {
		t.Errorf("read after removal: %v", err)
	}
	if err := mapper.RemoveAccessor(acc); err == nil {
		t.Error("removed an unregistered accessor")
	}
}

func TestFileAccessor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ewram.bin")
	if err := os.WriteFile(path, asByteSlice(&ewramBlocks, 1), 0o644); err != nil {
		t.Fatal(err)
	}

	fa, err := NewFileAccessor(path, 0x02000000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	// The second half of the file also appears higher up.
	if err := fa.AddOffsetRange(0x02100000, BlockSizeBytes/2, BlockSizeBytes/2); err != nil {
		t.Fatal(err)
	}
	if err := fa.AddOffsetRange(0x02000100, 16, 0); !errors.Is(err, ErrOverlap) {
		t.Errorf("expected overlap, got %v", err)
	}
	if err := fa.AddOffsetRange(0x03000000, BlockSizeBytes, 16); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected invalid range, got %v", err)
	}

	mapper := NewMapper()
	mapper.EnableCaching(true)
	if err := mapper.AddAccessor(fa); err != nil {
		t.Fatal(err)
	}

	if got := readU32(t, mapper, 0x02000008); got != ewramBlocks[1][2] {
		t.Errorf("read 0x%X, want 0x%X", got, ewramBlocks[1][2])
	}
	if got := readU32(t, mapper, 0x02100000); got != ewramBlocks[1][BlockNumWords/2] {
		t.Errorf("read 0x%X, want 0x%X", got, ewramBlocks[1][BlockNumWords/2])
	}

	// Between the two regions.
	var buf [4]byte
	if err := mapper.ReadMemory(0x02080000, buf[:]); err == nil {
		t.Error("read in the gap between regions succeeded")
	}

	if err := mapper.RemoveAllAccessors(); err != nil {
		t.Errorf("RemoveAllAccessors() error: %v", err)
	}
	if err := fa.Close(); err == nil {
		t.Error("file not closed by RemoveAllAccessors")
	}
}

func TestFileAccessor_Missing(t *testing.T) {
	if _, err := NewFileAccessor(filepath.Join(t.TempDir(), "nope.bin"), 0, 0, 0); err == nil {
		t.Error("opened a missing file")
	}
}
