package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"memwatch/memory"
)

const sampleIni = `; captured from a test build
[snapshot]
version=1.0
description=Title screen
width=64

[modules]
Game.exe=0x140000000

[dump0]
file=game.bin
address=0x140000000

[dump_heap]
file="heap.bin"   # quoted
address=0x20000
length=0x100
offset=0x10
space=process
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleIni), "snapshot.ini")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := &Snapshot{
		Version:     "1.0",
		Description: "Title screen",
		Width:       memory.Width64,
		Modules:     map[string]memory.Address{"Game.exe": 0x140000000},
		Dumps: []Dump{
			{Section: "dump0", File: "game.bin", Address: 0x140000000, Space: SpaceProcess},
			{Section: "dump_heap", File: "heap.bin", Address: 0x20000, Length: 0x100, Offset: 0x10, Space: SpaceProcess},
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}

	if addr, ok := s.Module("game.EXE"); !ok || addr != 0x140000000 {
		t.Errorf("Module() = %s, %v", addr, ok)
	}
	if _, ok := s.Module("other.dll"); ok {
		t.Error("Module() found an unrecorded module")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		ini  string
	}{
		{"duplicate key", "[snapshot]\nversion=1\nversion=1\n"},
		{"bad version", "[snapshot]\nversion=2\n"},
		{"bad width", "[snapshot]\nwidth=16\n"},
		{"bad module", "[modules]\na.exe=nope\n"},
		{"missing address", "[dump0]\nfile=a.bin\n"},
		{"missing file", "[dump0]\naddress=0x10\n"},
		{"unknown dump key", "[dump0]\nfile=a.bin\naddress=0\ncolour=red\n"},
		{"unknown space", "[dump0]\nfile=a.bin\naddress=0\nspace=kernel\n"},
		{"no equals", "[snapshot]\nversion\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.ini), "test.ini")
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("Parse() error = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse(strings.NewReader("version=9\n[dump]\nfile=a.bin\naddress=0x0\n"), "test.ini")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s.Width != memory.Width64 {
		t.Errorf("Width = %s, want 64-bit", s.Width)
	}
	if len(s.Dumps) != 1 || s.Dumps[0].Length != 0 {
		t.Errorf("Dumps = %+v", s.Dumps)
	}
}

// target lays out a two-level chain across two regions:
//
//	module 0x140000000 +0x10 -> 0x20000
//	heap   0x20000     +0x08 = 1234 (u32)
func target() *memory.Regions {
	module := make([]byte, 0x40)
	binary.LittleEndian.PutUint64(module[0x10:], 0x20000)
	heap := make([]byte, 0x20)
	binary.LittleEndian.PutUint32(heap[0x08:], 1234)
	return memory.NewRegions(
		memory.NewBuffer(0x140000000, module),
		memory.NewBuffer(0x20000, heap),
	)
}

func TestCaptureAndOpen(t *testing.T) {
	dir := t.TempDir()
	s := &Snapshot{
		Description: "captured",
		Width:       memory.Width64,
		Modules:     map[string]memory.Address{"Game.exe": 0x140000000},
	}
	regions := []Region{
		{Name: "Game.exe", Address: 0x140000000, Length: 0x40},
		{Address: 0x20000, Length: 0x20},
	}
	if err := Capture(dir, target(), s, regions); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	img, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer img.Close()

	if diff := cmp.Diff(s, img.Snapshot); diff != "" {
		t.Errorf("reloaded snapshot mismatch (-want +got):\n%s", diff)
	}
	if img.Width() != memory.Width64 {
		t.Errorf("Width() = %s", img.Width())
	}

	base, ok := img.Module("Game.exe")
	if !ok {
		t.Fatal("module not recorded")
	}
	v, err := memory.Read[uint32](img, base, img.Width(), []uint64{0x10, 0x08})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if v != 1234 {
		t.Errorf("Read() = %d, want 1234", v)
	}

	if _, err := memory.Read[uint32](img, 0x30000, img.Width(), []uint64{0}); err == nil {
		t.Error("read outside every dump succeeded")
	}

	if !img.IsOpen() {
		t.Error("IsOpen() = false before Close")
	}
	if err := img.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if img.IsOpen() {
		t.Error("IsOpen() = true after Close")
	}
	if err := img.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestCaptureUnreadable(t *testing.T) {
	err := Capture(t.TempDir(), target(), &Snapshot{Width: memory.Width64}, []Region{
		{Address: 0x50000, Length: 0x10},
	})
	if err == nil {
		t.Fatal("Capture() of unmapped memory succeeded")
	}
	if err := Capture(t.TempDir(), target(), &Snapshot{}, []Region{{Address: 0x20000}}); err == nil {
		t.Fatal("Capture() of an empty region succeeded")
	}
}

func TestOpenOffsetDump(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 0x20)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(dir, "raw.bin"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	ini := "[snapshot]\nwidth=32\n[dump0]\nfile=raw.bin\naddress=0x02000000\noffset=0x10\nspace=guest\n"
	if err := os.WriteFile(filepath.Join(dir, IniFilename), []byte(ini), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer img.Close()

	buf := make([]byte, 4)
	if err := img.ReadMemory(0x02000000, buf); err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	if !bytes.Equal(buf, []byte{0x10, 0x11, 0x12, 0x13}) {
		t.Errorf("ReadMemory() = % x", buf)
	}
	if err := img.ReadMemory(0x02000010, buf); err == nil {
		t.Error("read past the mapped tail succeeded")
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(t.TempDir(), nil); err == nil {
		t.Error("Open() of an empty directory succeeded")
	}

	dir := t.TempDir()
	ini := "[dump0]\nfile=missing.bin\naddress=0\n"
	if err := os.WriteFile(filepath.Join(dir, IniFilename), []byte(ini), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir, nil); err == nil {
		t.Error("Open() with a missing dump file succeeded")
	}
}
