package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gsdhq/gsd/internal/errs"
)

const backupsDirName = ".backups"

// backupTimestampLayout names backup directories with an ISO-like,
// filename-safe timestamp.
const backupTimestampLayout = "2006-01-02T15-04-05"

// Vault copies files into a timestamped backup directory before they are
// altered or deleted, mirroring their root-relative paths so they can be
// restored. One vault serves one operation; its directory is created lazily
// on the first backup. Prior backups are never deleted by the tool.
type Vault struct {
	root    Root
	label   string
	dir     string
	created bool
	files   map[string]string // original relative path -> backup path
}

// NewVault creates a vault for one operation. label distinguishes the
// operation in the directory name (e.g. "repair", "uninstall").
func NewVault(root Root, label string) *Vault {
	stamp := time.Now().Format(backupTimestampLayout)
	name := stamp
	if label != "" {
		name = stamp + "-" + label
	}
	return &Vault{
		root:  root,
		label: label,
		dir:   filepath.Join(root.BackupsDir(), name),
		files: make(map[string]string),
	}
}

// Dir returns the vault directory path. It exists only after the first
// successful backup.
func (v *Vault) Dir() string { return v.dir }

// Empty reports whether nothing has been backed up yet.
func (v *Vault) Empty() bool { return !v.created }

// Files returns the map of original relative paths to backup paths.
func (v *Vault) Files() map[string]string {
	out := make(map[string]string, len(v.files))
	for k, val := range v.files {
		out[k] = val
	}
	return out
}

// BackupFile copies the file at absPath into the vault, preserving its
// path relative to the installation root. The original is copied, never
// moved. A failed backup must abort whatever destructive step requested it.
func (v *Vault) BackupFile(absPath string) (string, error) {
	rel, err := filepath.Rel(v.root.Path, absPath)
	if err != nil {
		return "", errs.Newf(errs.TagUnknown, "backup", "cannot relativize %q against root", absPath)
	}

	dest := filepath.Join(v.dir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", errs.Classify("create backup directory", err)
	}
	v.created = true

	if err := copyFile(absPath, dest); err != nil {
		return "", errs.Classify("backup file", err)
	}
	v.files[filepath.ToSlash(rel)] = dest
	return dest, nil
}

// BackupTree copies every file under absDir into the vault.
func (v *Vault) BackupTree(absDir string) error {
	return filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		_, err = v.BackupFile(path)
		return err
	})
}

// Restore copies every backed-up file back to its original location. Used to
// roll back a failed structure migration.
func (v *Vault) Restore() error {
	for rel, backupPath := range v.files {
		dest := filepath.Join(v.root.Path, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
			return errs.Classify("restore backup", err)
		}
		if err := copyFile(backupPath, dest); err != nil {
			return errs.Classify("restore backup", err)
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode()&0o777)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
