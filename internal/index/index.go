// Package index models the repository index document: the catalog mapping
// chart names to published release entries.
package index

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the index document filename served at the repository root.
const FileName = "index.yaml"

// Entry is one published release of a chart.
type Entry struct {
	Version     string   `yaml:"version"`
	AppVersion  string   `yaml:"appVersion,omitempty"`
	URLs        []string `yaml:"urls,omitempty"`
	Created     string   `yaml:"created,omitempty"`
	Digest      string   `yaml:"digest,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Index is the read-path view of an index document, used to decide which
// releases are already published. It is never written back; the generation
// toolchain produces the output document.
type Index struct {
	APIVersion string             `yaml:"apiVersion"`
	Entries    map[string][]Entry `yaml:"entries"`
}

// Parse decodes an index document.
func Parse(data []byte) (*Index, error) {
	var ix Index
	if err := yaml.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	return &ix, nil
}

// Load reads and parses the index document at path.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	return Parse(data)
}

// Has reports whether the given chart release is already published.
// A nil index has no releases.
func (ix *Index) Has(name, version string) bool {
	if ix == nil {
		return false
	}
	for _, e := range ix.Entries[name] {
		if e.Version == version {
			return true
		}
	}
	return false
}

// Len returns the number of charts (not releases) in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.Entries)
}
