package update

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/registry"
	"github.com/gsdhq/gsd/pkg/logger"
)

// PackageInstaller materializes a published version of the product and
// returns the directory holding its template tree. Injected so the update
// orchestration is testable without a real package manager on PATH.
type PackageInstaller interface {
	Install(ctx context.Context, version string, scope install.Scope) (sourceRoot string, err error)
}

// NpmInstaller drives the npm command-line tool as a subprocess. Global
// scope installs with -g; local scope installs into the working directory's
// node_modules.
type NpmInstaller struct {
	// Bin is the npm executable, "npm" by default.
	Bin string
}

// NewNpmInstaller creates an installer using npm from PATH.
func NewNpmInstaller() *NpmInstaller {
	return &NpmInstaller{Bin: "npm"}
}

// Install runs `npm install [-g] get-shit-done-cc@<version>` and resolves
// the installed package directory via `npm root`. The subprocess is awaited
// to completion; it is the only long-running operation in an update.
func (n *NpmInstaller) Install(ctx context.Context, version string, scope install.Scope) (string, error) {
	if _, err := exec.LookPath(n.Bin); err != nil {
		return "", errs.Newf(errs.TagNotFound, "npm", "%s not found in PATH", n.Bin)
	}

	spec := registry.PackageName
	if version != "" {
		spec = fmt.Sprintf("%s@%s", registry.PackageName, version)
	}

	args := []string{"install"}
	if scope == install.ScopeGlobal {
		args = append(args, "-g")
	}
	args = append(args, spec)

	logger.Info("installing package", logger.String("spec", spec), logger.String("scope", string(scope)))
	cmd := exec.CommandContext(ctx, n.Bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errs.Newf(errs.TagNetworkError, "npm install", "npm install failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	return n.packageDir(ctx, scope)
}

// packageDir locates the installed package under npm's module root.
func (n *NpmInstaller) packageDir(ctx context.Context, scope install.Scope) (string, error) {
	args := []string{"root"}
	if scope == install.ScopeGlobal {
		args = append(args, "-g")
	}
	out, err := exec.CommandContext(ctx, n.Bin, args...).Output()
	if err != nil {
		return "", errs.Newf(errs.TagNotFound, "npm root", "could not resolve npm module root: %v", err)
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", errs.Newf(errs.TagNotFound, "npm root", "npm reported an empty module root")
	}
	return filepath.Join(root, registry.PackageName), nil
}
