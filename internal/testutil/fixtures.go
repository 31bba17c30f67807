package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// WriteFixture creates a fixture file under dir and returns its path.
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll(%s) failed: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
	return path
}

// ExtractArchive unpacks a txtar archive into a fresh temporary directory.
//
// Files whose name starts with "expect/" are not written to disk; they are
// returned keyed by the name without the prefix, so an archive can carry both
// a fixture suite and the report it should produce.
func ExtractArchive(t *testing.T, archivePath string) (dir string, expect map[string]string) {
	t.Helper()
	ar, err := txtar.ParseFile(archivePath)
	if err != nil {
		t.Fatalf("txtar.ParseFile(%s) failed: %v", archivePath, err)
	}

	dir = t.TempDir()
	expect = make(map[string]string)
	for _, f := range ar.Files {
		if name, ok := strings.CutPrefix(f.Name, "expect/"); ok {
			expect[name] = string(f.Data)
			continue
		}
		WriteFixture(t, dir, f.Name, string(f.Data))
	}
	return dir, expect
}
