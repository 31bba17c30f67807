package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtension is the file suffix that marks a fixture.
const DefaultExtension = ".dorp"

// Fixture is a single discovered test input file.
// Fixtures are immutable once discovered.
type Fixture struct {
	// Path is the absolute path of the fixture file.
	Path string `json:"path"`

	// Name is the base name of the fixture file (e.g. "arith.dorp").
	Name string `json:"name"`
}

// New builds a Fixture for path, resolving it to an absolute path.
func New(path string) (Fixture, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("resolve fixture path %q: %w", path, err)
	}
	return Fixture{Path: abs, Name: filepath.Base(abs)}, nil
}

// Discover returns the fixtures found directly inside dir.
//
// An entry is a fixture if its name ends with ext and it is a regular file
// (symlinks are followed). Subdirectories are never descended into, even when
// their name carries the extension. Results are sorted by name.
//
// Returns a *DiscoveryError if dir cannot be read.
func Discover(dir, ext string) ([]Fixture, error) {
	if ext == "" {
		ext = DefaultExtension
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}

	fixtures := make([]Fixture, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ext) {
			continue
		}

		path := filepath.Join(abs, name)
		if !entry.Type().IsRegular() {
			// Follow symlinks; skip directories and anything we can't stat.
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}

		fixtures = append(fixtures, Fixture{Path: path, Name: name})
	}

	sort.Slice(fixtures, func(i, j int) bool {
		return fixtures[i].Name < fixtures[j].Name
	})

	return fixtures, nil
}

// Filter keeps the fixtures whose name matches at least one glob pattern.
//
// Patterns use filepath.Match syntax and are tried against the full file name
// and against the name without its extension, so "arith*" and "arith*.dorp"
// select the same fixtures. An empty pattern list keeps every fixture.
func Filter(fixtures []Fixture, patterns []string) ([]Fixture, error) {
	if len(patterns) == 0 {
		return fixtures, nil
	}

	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
	}

	kept := make([]Fixture, 0, len(fixtures))
	for _, f := range fixtures {
		stem := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
		for _, pattern := range patterns {
			full, _ := filepath.Match(pattern, f.Name)
			bare, _ := filepath.Match(pattern, stem)
			if full || bare {
				kept = append(kept, f)
				break
			}
		}
	}
	return kept, nil
}

// Load reads the full text of a fixture.
// Returns a *FixtureReadError if the file cannot be read.
func Load(f Fixture) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", &FixtureReadError{Fixture: f, Err: err}
	}
	return string(data), nil
}
