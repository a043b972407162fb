package snapshot

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"memwatch/memory"
)

// Region is a range of target memory to capture.
type Region struct {
	Name    string
	Address memory.Address
	Length  uint64
	Space   string
}

// chunkSize bounds a single read while capturing.
const chunkSize = 1 << 16

// Capture reads every region from src and writes it to dir as a snapshot
// that Open can replay.
func Capture(dir string, src memory.MemoryReader, s *Snapshot, regions []Region) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.Version = cmp.Or(s.Version, "1.0")
	if !s.Width.Valid() {
		s.Width = memory.Width64
	}
	s.Dumps = s.Dumps[:0]
	for i, r := range regions {
		if r.Length == 0 {
			return fmt.Errorf("region %d (%s): empty", i, r.Name)
		}
		section := DumpSectionPrefix + strconv.Itoa(i)
		file := section + ".bin"
		if r.Name != "" {
			file = section + "_" + filepath.Base(r.Name) + ".bin"
		}
		if err := captureRegion(filepath.Join(dir, file), src, r); err != nil {
			return fmt.Errorf("region %d (%s): %w", i, r.Name, err)
		}
		s.Dumps = append(s.Dumps, Dump{
			Section: section,
			File:    file,
			Address: r.Address,
			Length:  r.Length,
			Space:   cmp.Or(r.Space, SpaceProcess),
		})
	}

	f, err := os.Create(filepath.Join(dir, IniFilename))
	if err != nil {
		return err
	}
	if err := s.WriteIni(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func captureRegion(path string, src memory.MemoryReader, r Region) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	buf := make([]byte, min(r.Length, chunkSize))
	for done := uint64(0); done < r.Length; {
		n := min(r.Length-done, uint64(len(buf)))
		addr := r.Address.Add(done)
		if err := src.ReadMemory(addr, buf[:n]); err != nil {
			f.Close()
			return fmt.Errorf("read %s: %w", addr, err)
		}
		if _, err := f.Write(buf[:n]); err != nil {
			f.Close()
			return err
		}
		done += n
	}
	return f.Close()
}
