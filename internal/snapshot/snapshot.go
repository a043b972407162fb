// Package snapshot reads and writes memory-dump snapshot directories: a
// snapshot.ini index plus the raw dump files it names. A loaded snapshot
// replays as a read-only memory image.
package snapshot

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"memwatch/memory"
)

// ErrInvalidSnapshot is wrapped by every parse and validation failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the parsed snapshot.ini.
type Snapshot struct {
	Version     string
	Description string
	Width       memory.PointerWidth
	Modules     map[string]memory.Address
	Dumps       []Dump
}

// Dump is one [dump*] section: Length bytes of File starting at Offset are
// mapped at Address. A zero Length maps the rest of the file.
type Dump struct {
	Section string
	File    string
	Address memory.Address
	Length  uint64
	Offset  uint64
	Space   string
}

// Module returns the recorded base of a module by name, ignoring case.
func (s *Snapshot) Module(name string) (memory.Address, bool) {
	if addr, ok := s.Modules[name]; ok {
		return addr, true
	}
	for k, addr := range s.Modules {
		if strings.EqualFold(k, name) {
			return addr, true
		}
	}
	return 0, false
}

// ModuleNames returns the recorded module names, sorted.
func (s *Snapshot) ModuleNames() []string {
	return slices.Sorted(maps.Keys(s.Modules))
}

// Load parses dir/snapshot.ini.
func Load(dir string) (*Snapshot, error) {
	path := filepath.Join(dir, IniFilename)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse parses a snapshot.ini read from r; name is used in error messages.
func Parse(r io.Reader, name string) (*Snapshot, error) {
	entries, err := readIni(r, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	s := &Snapshot{
		Width:   memory.Width64,
		Modules: map[string]memory.Address{},
	}
	seen := map[string]bool{}
	dumps := map[string]*Dump{}
	var dumpOrder []string
	dumpHas := map[string]map[string]bool{}

	for _, e := range entries {
		dupKey := e.section + "\x00" + strings.ToLower(e.key)
		if seen[dupKey] {
			return nil, invalidf("%s:%d: duplicate %s key %q", name, e.line, e.section, e.key)
		}
		seen[dupKey] = true

		switch {
		case e.section == SnapshotSectionName:
			switch e.key {
			case VersionKey:
				s.Version = e.value
			case DescriptionKey:
				s.Description = e.value
			case WidthKey:
				w, err := memory.ParsePointerWidth(e.value)
				if err != nil {
					return nil, invalidf("%s:%d: %v", name, e.line, err)
				}
				s.Width = w
			}
		case e.section == ModulesSectionName:
			addr, err := parseUint64(e.value)
			if err != nil {
				return nil, invalidf("%s:%d: module %s: %v", name, e.line, e.key, err)
			}
			s.Modules[e.key] = memory.Address(addr)
		case strings.HasPrefix(e.section, DumpSectionPrefix):
			d := dumps[e.section]
			if d == nil {
				d = &Dump{Section: e.section, Space: SpaceProcess}
				dumps[e.section] = d
				dumpHas[e.section] = map[string]bool{}
				dumpOrder = append(dumpOrder, e.section)
			}
			if err := d.set(e.key, e.value); err != nil {
				return nil, invalidf("%s:%d: [%s] %v", name, e.line, e.section, err)
			}
			dumpHas[e.section][e.key] = true
		}
	}

	if s.Version != "" && s.Version != "1" && s.Version != "1.0" {
		return nil, invalidf("illegal snapshot file version: %s", s.Version)
	}

	for _, sec := range dumpOrder {
		if !dumpHas[sec][DumpAddressKey] {
			return nil, invalidf("[%s] missing mandatory address definition", sec)
		}
		if !dumpHas[sec][DumpFileKey] {
			return nil, invalidf("[%s] missing mandatory file definition", sec)
		}
		s.Dumps = append(s.Dumps, *dumps[sec])
	}
	return s, nil
}

func (d *Dump) set(key, value string) error {
	var err error
	switch key {
	case DumpFileKey:
		if value == "" {
			return errors.New("empty file")
		}
		d.File = value
	case DumpSpaceKey:
		switch value {
		case SpaceProcess, SpaceGuest:
			d.Space = value
		default:
			return fmt.Errorf("unknown space %q", value)
		}
	case DumpAddressKey:
		var v uint64
		v, err = parseUint64(value)
		d.Address = memory.Address(v)
	case DumpLengthKey:
		d.Length, err = parseUint64(value)
	case DumpOffsetKey:
		d.Offset, err = parseUint64(value)
	default:
		return fmt.Errorf("unknown dump key: %s", key)
	}
	return err
}

// WriteIni writes s in snapshot.ini form.
func (s *Snapshot) WriteIni(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", SnapshotSectionName)
	fmt.Fprintf(&b, "%s=%s\n", VersionKey, cmp.Or(s.Version, "1.0"))
	if s.Description != "" {
		fmt.Fprintf(&b, "%s=%s\n", DescriptionKey, s.Description)
	}
	fmt.Fprintf(&b, "%s=%d\n", WidthKey, s.Width.Size()*8)

	if len(s.Modules) > 0 {
		fmt.Fprintf(&b, "\n[%s]\n", ModulesSectionName)
		for _, name := range s.ModuleNames() {
			fmt.Fprintf(&b, "%s=0x%X\n", name, uint64(s.Modules[name]))
		}
	}

	for i, d := range s.Dumps {
		sec := d.Section
		if sec == "" {
			sec = DumpSectionPrefix + strconv.Itoa(i)
		}
		fmt.Fprintf(&b, "\n[%s]\n", sec)
		fmt.Fprintf(&b, "%s=%s\n", DumpFileKey, d.File)
		fmt.Fprintf(&b, "%s=0x%X\n", DumpAddressKey, uint64(d.Address))
		if d.Length != 0 {
			fmt.Fprintf(&b, "%s=0x%X\n", DumpLengthKey, d.Length)
		}
		if d.Offset != 0 {
			fmt.Fprintf(&b, "%s=0x%X\n", DumpOffsetKey, d.Offset)
		}
		if d.Space != "" && d.Space != SpaceProcess {
			fmt.Fprintf(&b, "%s=%s\n", DumpSpaceKey, d.Space)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func parseUint64(value string) (uint64, error) {
	v, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid uint64: %s", value)
	}
	return v, nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSnapshot, fmt.Sprintf(format, args...))
}
