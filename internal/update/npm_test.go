package update

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gsdhq/gsd/internal/install"
)

// fakeNpm drops a shell script named npm on PATH that logs its arguments
// and answers `npm root` with the given directory.
func fakeNpm(t *testing.T, moduleRoot string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake npm script requires a POSIX shell")
	}

	binDir := t.TempDir()
	argsLog := filepath.Join(binDir, "args.log")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"" + argsLog + "\"\n" +
		"if [ \"$1\" = \"root\" ]; then echo \"" + moduleRoot + "\"; fi\n"
	if err := os.WriteFile(filepath.Join(binDir, "npm"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return argsLog
}

func readArgsLog(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestNpmInstallerGlobalArgs(t *testing.T) {
	moduleRoot := t.TempDir()
	argsLog := fakeNpm(t, moduleRoot)

	sourceRoot, err := NewNpmInstaller().Install(context.Background(), "1.2.3", install.ScopeGlobal)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	lines := readArgsLog(t, argsLog)
	if len(lines) != 2 {
		t.Fatalf("expected install + root invocations, got %v", lines)
	}
	if lines[0] != "install -g get-shit-done-cc@1.2.3" {
		t.Errorf("unexpected install args %q", lines[0])
	}
	if lines[1] != "root -g" {
		t.Errorf("unexpected root args %q", lines[1])
	}
	if sourceRoot != filepath.Join(moduleRoot, "get-shit-done-cc") {
		t.Errorf("unexpected source root %s", sourceRoot)
	}
}

func TestNpmInstallerLocalArgs(t *testing.T) {
	argsLog := fakeNpm(t, t.TempDir())

	if _, err := NewNpmInstaller().Install(context.Background(), "2.0.0", install.ScopeLocal); err != nil {
		t.Fatalf("Install: %v", err)
	}

	lines := readArgsLog(t, argsLog)
	if lines[0] != "install get-shit-done-cc@2.0.0" {
		t.Errorf("local install must not use -g, got %q", lines[0])
	}
	if lines[1] != "root" {
		t.Errorf("unexpected root args %q", lines[1])
	}
}

func TestNpmInstallerMissingBinary(t *testing.T) {
	installer := &NpmInstaller{Bin: "definitely-not-a-real-npm"}
	if _, err := installer.Install(context.Background(), "1.0.0", install.ScopeGlobal); err == nil {
		t.Fatal("expected error when npm is not on PATH")
	}
}
