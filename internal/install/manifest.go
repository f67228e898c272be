package install

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/pkg/safeio"
)

const manifestFileName = "INSTALLED_FILES.json"

// manifestSchema validates the on-disk manifest shape before any entry is
// trusted. A manifest that fails validation is CorruptedState; consumers fall
// back to a namespace scan rather than guessing file ownership.
const manifestSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["path", "relativePath", "size"],
    "properties": {
      "path": {"type": "string", "minLength": 1},
      "relativePath": {"type": "string", "minLength": 1},
      "size": {"type": "integer", "minimum": 0},
      "hash": {"type": ["string", "null"]}
    }
  }
}`

// Entry records one file the installer placed.
type Entry struct {
	Path         string `json:"path"`
	RelativePath string `json:"relativePath"`
	Size         int64  `json:"size"`
	Hash         string `json:"hash,omitempty"`
}

// Manifest is the durable record of every file a given install placed. It
// bounds destructive operations: consumers must still check each entry
// against the namespace allow-list before deleting or overwriting anything.
type Manifest struct {
	root    Root
	entries []Entry
}

// NewManifest creates an empty manifest for root.
func NewManifest(root Root) *Manifest {
	return &Manifest{root: root}
}

// Entries returns the recorded entries in order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of recorded entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Append records an entry for a file that has just been placed on disk and
// persists immediately, so a crash between files leaves a manifest that
// matches what is actually installed.
func (m *Manifest) Append(entry Entry) error {
	m.entries = append(m.entries, entry)
	return m.Persist()
}

// Update replaces the entry with a matching relative path, or appends when
// none exists. The caller persists when its batch of updates is complete.
func (m *Manifest) Update(entry Entry) {
	for i := range m.entries {
		if m.entries[i].RelativePath == entry.RelativePath {
			m.entries[i] = entry
			return
		}
	}
	m.entries = append(m.entries, entry)
}

// Persist writes the manifest atomically.
func (m *Manifest) Persist() error {
	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return errs.New(errs.TagCorruptedState, "serialize manifest", err)
	}
	data = append(data, '\n')
	if err := safeio.WriteFileAtomic(m.root.ManifestFile(), data, 0o644); err != nil {
		return errs.Classify("write manifest", err)
	}
	return nil
}

// Remove deletes the manifest file. Missing is not an error.
func (m *Manifest) Remove() error {
	if err := os.Remove(m.root.ManifestFile()); err != nil && !os.IsNotExist(err) {
		return errs.Classify("remove manifest", err)
	}
	return nil
}

// LoadManifest reads and validates the manifest. A missing file returns
// (nil, nil): callers switch to FromNamespaceScan. Unparseable or
// schema-invalid content is CorruptedState.
func LoadManifest(root Root) (*Manifest, error) {
	data, err := os.ReadFile(root.ManifestFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Classify("read manifest", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(manifestSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, errs.New(errs.TagCorruptedState, "validate manifest", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, errs.Newf(errs.TagCorruptedState, "validate manifest", "manifest failed validation: %s", strings.Join(msgs, "; "))
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errs.New(errs.TagCorruptedState, "parse manifest", err)
	}
	return &Manifest{root: root, entries: entries}, nil
}

// FromNamespaceScan rebuilds a manifest by walking the installation root and
// collecting files inside the namespace allow-list. It produces the same
// type as LoadManifest so downstream consumers are agnostic to which path
// built it. Used when the manifest file is absent or corrupted.
func FromNamespaceScan(root Root) (*Manifest, error) {
	m := &Manifest{root: root}

	err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root.Path, path)
		if err != nil {
			return err
		}
		if !InAllowedNamespace(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := HashFile(path)
		if err != nil {
			return err
		}
		m.entries = append(m.entries, Entry{
			Path:         path,
			RelativePath: filepath.ToSlash(rel),
			Size:         info.Size(),
			Hash:         hash,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, errs.Classify("scan namespaces", err)
	}

	sort.Slice(m.entries, func(i, j int) bool {
		return m.entries[i].RelativePath < m.entries[j].RelativePath
	})
	return m, nil
}

// LoadOrScan loads the manifest, degrading to a namespace scan when the file
// is missing or corrupted. The bool result reports whether the fallback was
// taken.
func LoadOrScan(root Root) (*Manifest, bool, error) {
	m, err := LoadManifest(root)
	if err != nil {
		if errs.TagOf(err) != errs.TagCorruptedState {
			return nil, false, err
		}
		m = nil
	}
	if m != nil {
		return m, false, nil
	}
	scanned, err := FromNamespaceScan(root)
	if err != nil {
		return nil, false, err
	}
	return scanned, true, nil
}

// HashFile computes the sha256 content hash recorded in manifest entries.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes computes the sha256 hex digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
