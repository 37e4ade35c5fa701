// Package chart discovers chart directories in a repository tree and reads
// their manifests.
package chart

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// ManifestName is the manifest file that marks a directory as a chart.
const ManifestName = "Chart.yaml"

// ErrNoIdentity is returned when a manifest is missing its name or version.
var ErrNoIdentity = errors.New("manifest missing name or version")

// Metadata is the identifying portion of a chart manifest.
type Metadata struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	AppVersion  string `yaml:"appVersion"`
	Description string `yaml:"description"`
}

// Dir is a discovered chart directory.
type Dir struct {
	Path string
}

// ArchiveName returns the packaged artifact filename for a chart identity.
func ArchiveName(name, version string) string {
	return fmt.Sprintf("%s-%s.tgz", name, version)
}

// Find walks <root>/charts/<category> for each category, in declaration
// order, and returns every directory that directly contains a Chart.yaml.
// Shared library charts (a directory named "common" under a "library" path)
// are excluded: they are dependencies of other charts, not publishable units.
// Missing category directories are logged and skipped so partially populated
// repository layouts do not abort a run.
func Find(root string, categories []string, logger *log.Logger) []Dir {
	var dirs []Dir
	for _, category := range categories {
		base := filepath.Join(root, "charts", category)
		found := findIn(base, logger)
		logger.Info("scanned category", "category", category, "charts", len(found))
		dirs = append(dirs, found...)
	}
	return dirs
}

func findIn(base string, logger *log.Logger) []Dir {
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		logger.Warn("category directory not found, skipping", "path", base)
		return nil
	}

	var dirs []Dir
	_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if _, err := os.Stat(filepath.Join(path, ManifestName)); err != nil {
			return nil
		}
		if isLibraryChart(path) {
			logger.Info("skipping library chart", "path", path)
			return nil
		}
		dirs = append(dirs, Dir{Path: path})
		return nil
	})
	return dirs
}

// isLibraryChart reports whether path is a shared "common" chart under a
// library category.
func isLibraryChart(path string) bool {
	if filepath.Base(path) != "common" {
		return false
	}
	for _, part := range splitPath(filepath.Dir(path)) {
		if part == "library" {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	var parts []string
	for {
		dir, file := filepath.Split(filepath.Clean(path))
		if file != "" {
			parts = append(parts, file)
		}
		if dir == "" || dir == string(filepath.Separator) || dir == path {
			break
		}
		path = dir
	}
	return parts
}

// Load reads and parses the manifest in dir. A chart without both a name
// and a version has no publishable identity; that case and any read or
// parse failure are reported as errors so the caller can skip the chart.
func Load(dir Dir) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir.Path, ManifestName))
	if err != nil {
		return Metadata{}, fmt.Errorf("reading manifest: %w", err)
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return Metadata{}, fmt.Errorf("parsing manifest: %w", err)
	}

	if md.Name == "" || md.Version == "" {
		return Metadata{}, fmt.Errorf("%s: %w", dir.Path, ErrNoIdentity)
	}
	return md, nil
}
