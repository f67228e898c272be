package install

import (
	"os"
	"path/filepath"
	"testing"
)

// testRoot builds a Root over a fresh temp directory.
func testRoot(t *testing.T) Root {
	t.Helper()
	return Root{Scope: ScopeGlobal, Path: t.TempDir()}
}

// writeFile creates a file (and parents) under dir with the given content.
func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// sourceTree builds a minimal template package directory with files inside
// and outside the product namespaces.
func sourceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "get-shit-done/workflows/plan.md", "read ~/.claude/get-shit-done/workflows/plan.md\n")
	writeFile(t, dir, "commands/gsd/plan.md", "# plan\nsee ~/.claude/commands/gsd/helper.md\n")
	writeFile(t, dir, "agents/gsd-planner.md", "planner agent\n")
	writeFile(t, dir, "package.json", `{"name":"get-shit-done-cc"}`)
	writeFile(t, dir, "README.md", "readme\n")
	return dir
}

// readFile reads a root-relative file and fails the test on error.
func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}
