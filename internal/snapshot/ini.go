package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type iniEntry struct {
	section string
	key     string
	value   string
	line    int
}

// readIni splits r into section/key/value entries in file order.
// Lines before the first section are ignored; comments start with ';' or '#'.
func readIni(r io.Reader, name string) ([]iniEntry, error) {
	var entries []iniEntry
	section := ""
	lineNo := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimSpace(strings.TrimPrefix(line, "\uFEFF"))
		}
		if idx := strings.IndexAny(line, "\r;#"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section == "" {
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			return nil, fmt.Errorf("invalid ini line %d in %s: %s", lineNo, name, line)
		}
		entries = append(entries, iniEntry{section: section, key: key, value: value, line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func splitKV(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, trimQuotes(value), true
}

func trimQuotes(value string) string {
	return strings.Trim(strings.TrimSpace(value), "\"'")
}
