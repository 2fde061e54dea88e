package grid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MapFile is the on-disk YAML form of a grid map. Rows may be written either
// as integer lists or as compact strings of '0' and '1':
//
//	name: competition
//	rows:
//	  - "111111111111110101010"
//	  - [0, 0, 0, 0, ...]
type MapFile struct {
	Name string      `yaml:"name"`
	Rows []yaml.Node `yaml:"rows"`
}

const maxMapFileSize = 1 * 1024 * 1024

// LoadMapFile reads and validates a YAML map. It is meant to be called once
// at startup; any error should abort the process.
func LoadMapFile(path string) (*Grid, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("map file must have .yaml or .yml extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat map file: %w", err)
	}
	if info.Size() > maxMapFileSize {
		return nil, fmt.Errorf("map file too large: %d bytes (max %d)", info.Size(), maxMapFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	return ParseMap(data)
}

// ParseMap decodes a YAML map document into a Grid.
func ParseMap(data []byte) (*Grid, error) {
	var mf MapFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}
	table := make([][]int, 0, len(mf.Rows))
	for i := range mf.Rows {
		row, err := decodeRow(&mf.Rows[i])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedMap, i, err)
		}
		table = append(table, row)
	}
	return New(table)
}

func decodeRow(n *yaml.Node) ([]int, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		s := strings.TrimSpace(n.Value)
		row := make([]int, 0, len(s))
		for _, r := range s {
			switch r {
			case '0':
				row = append(row, Pathable)
			case '1':
				row = append(row, Blocked)
			default:
				return nil, fmt.Errorf("unexpected character %q", r)
			}
		}
		return row, nil
	case yaml.SequenceNode:
		var row []int
		if err := n.Decode(&row); err != nil {
			return nil, err
		}
		return row, nil
	default:
		return nil, fmt.Errorf("row must be a string or a list, got YAML kind %d", n.Kind)
	}
}
