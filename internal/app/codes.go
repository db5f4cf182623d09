package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadCodesFromFile reads a list of instrument codes from a file.
// Supported formats:
//   - .txt  : one code per line, '#' lines are treated as comments
//   - .json : JSON array of numbers
func LoadCodesFromFile(path string) ([]uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var codes []uint32
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(content, &codes); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	case ".txt":
		if codes, err = parseCodesFromText(string(content)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported code file extension %q (use .txt or .json)", filepath.Ext(path))
	}

	seen := make(map[uint32]bool)
	var unique []uint32
	for _, c := range codes {
		if c != 0 && !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}

	slog.Info("loaded codes from file", "count", len(unique), "path", path)
	return unique, nil
}

// parseCodesFromText parses one code per non-empty, non-comment line.
// Anything after the first blank on a line (a name, say) is ignored.
func parseCodesFromText(s string) ([]uint32, error) {
	var codes []uint32
	for i, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field := strings.Fields(line)[0]
		v, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid code %q", i+1, field)
		}
		codes = append(codes, uint32(v))
	}
	return codes, nil
}
