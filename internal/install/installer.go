package install

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/gsdhq/gsd/pkg/safeio"
)

// sourcePathToken is the source-ecosystem path marker embedded in template
// text. It is rewritten to the resolved installation root at copy time, never
// as a separate pass, so no file is observable half-rewritten.
const sourcePathToken = "~/.claude"

// InstallResult summarizes a completed copy.
type InstallResult struct {
	FilesCopied int
	Directories int
}

// FileInstaller copies a template source tree into the installation root
// with per-file atomicity and write-ahead manifesting: each file is staged
// to a temp sibling and renamed into place, and its manifest entry is
// persisted before the next file is touched. A crash mid-install therefore
// leaves a manifest that exactly matches what is on disk.
type FileInstaller struct {
	root     Root
	manifest *Manifest
}

// NewFileInstaller creates an installer writing into root and recording into
// manifest.
func NewFileInstaller(root Root, manifest *Manifest) *FileInstaller {
	return &FileInstaller{root: root, manifest: manifest}
}

// Install copies sourceRoot into the installation root depth-first. Text
// files inside the template namespaces have path tokens rewritten during the
// copy.
func (fi *FileInstaller) Install(sourceRoot string) (*InstallResult, error) {
	if _, err := os.Stat(sourceRoot); err != nil {
		return nil, errs.Classify("read source tree", err)
	}

	var files []string
	err := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(sourceRoot, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			return nil
		}
		// Only template files inside the allowed namespaces are installed;
		// package scaffolding (package.json, readme, etc.) stays behind.
		if InAllowedNamespace(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Classify("walk source tree", err)
	}
	sort.Strings(files)

	result := &InstallResult{}
	dirs := make(map[string]struct{})
	for _, rel := range files {
		if err := fi.installFile(sourceRoot, rel); err != nil {
			return result, err
		}
		result.FilesCopied++
		dirs[filepath.Dir(rel)] = struct{}{}
	}
	result.Directories = len(dirs)
	return result, nil
}

// InstallFile copies the single root-relative file from sourceRoot, staging
// and manifesting it the same way a full install does. Used by repair to
// restore individual files.
func (fi *FileInstaller) InstallFile(sourceRoot, rel string) error {
	return fi.installFile(sourceRoot, rel)
}

func (fi *FileInstaller) installFile(sourceRoot, rel string) error {
	src := filepath.Join(sourceRoot, rel)
	data, err := os.ReadFile(src)
	if err != nil {
		return errs.Classify("read source file", err)
	}

	relSlash := filepath.ToSlash(rel)
	if InAllowedNamespace(relSlash) && isRewritableText(data) {
		data = RewritePathTokens(data, fi.root)
	}

	dest := filepath.Join(fi.root.Path, rel)
	if err := safeio.WriteFileAtomic(dest, data, 0o644); err != nil {
		return errs.Classify("install file", err)
	}
	logger.Debug("installed file", logger.String("path", relSlash))

	if fi.manifest == nil {
		return nil
	}
	return fi.manifest.Append(Entry{
		Path:         dest,
		RelativePath: relSlash,
		Size:         int64(len(data)),
		Hash:         HashBytes(data),
	})
}

// RewritePathTokens replaces embedded source-ecosystem path markers with the
// resolved installation root.
func RewritePathTokens(data []byte, root Root) []byte {
	return bytes.ReplaceAll(data, []byte(sourcePathToken), []byte(root.Path))
}

// HasStalePathToken reports whether text still contains an unrewritten
// source-ecosystem path marker, along with the first offending line.
func HasStalePathToken(data []byte) (bool, string) {
	if !bytes.Contains(data, []byte(sourcePathToken)) {
		return false, ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, sourcePathToken) {
			return true, strings.TrimSpace(line)
		}
	}
	return true, ""
}

// isRewritableText reports whether content is safe to treat as text: valid
// UTF-8 with no NUL bytes.
func isRewritableText(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	return utf8.Valid(data)
}
