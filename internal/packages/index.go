package packages

import (
	"encoding/json"
	"fmt"
)

// IndexEntry is one published version in a namespace index.
type IndexEntry struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Index []IndexEntry

func ParseIndex(data []byte) (Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse package index: %w", err)
	}
	return idx, nil
}

// Versions lists the published versions of name in index order.
func (idx Index) Versions(name string) []string {
	var out []string
	for _, e := range idx {
		if e.Name == name {
			out = append(out, e.Version)
		}
	}
	return out
}
