// Package settings implements the gsd user-preference store.
//
// Preferences live in an XDG-resolved settings.json, independent of any
// installation root. Reads merge a fixed defaults tree under user overrides;
// only overrides are ever persisted, so deleting the file restores pure
// defaults. All writes are atomic.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/pkg/safeio"
)

const settingsFileName = "settings.json"

// defaults is the fixed defaults tree. Values here are never written to disk.
var defaults = map[string]interface{}{
	"update.channel":    "stable",
	"update.auto_check": true,
	"install.scope":     "global",
	"backup.enabled":    true,
	"output.color":      true,
	"repair.confirm":    true,
}

// Store reads and writes the settings document. The cached document is owned
// by the store instance and invalidated on every write; construct one store
// per command invocation and pass it to whoever needs it.
type Store struct {
	path   string
	cached *viper.Viper
}

// DefaultPath resolves the settings file location: $XDG_CONFIG_HOME/gsd or
// ~/.config/gsd.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "gsd", settingsFileName), nil
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// NewDefaultStore creates a store at the XDG-resolved default location.
func NewDefaultStore() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return NewStore(path), nil
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// load returns a viper snapshot with defaults underneath user overrides.
// The snapshot is cached until the next write.
func (s *Store) load() (*viper.Viper, error) {
	if s.cached != nil {
		return s.cached, nil
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	doc, err := s.readOverrides()
	if err != nil {
		return nil, err
	}
	if doc != nil {
		if err := v.MergeConfigMap(doc); err != nil {
			return nil, errs.New(errs.TagCorruptedState, "merge settings", err)
		}
	}

	s.cached = v
	return v, nil
}

// readOverrides reads the raw override document. A missing file yields an
// empty document; unparseable JSON is CorruptedState and the caller decides
// whether to fall back.
func (s *Store) readOverrides() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Classify("read settings", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.New(errs.TagCorruptedState, "parse settings", err)
	}
	return doc, nil
}

// Get returns the effective value at dotPath: the user override when present,
// otherwise the default, otherwise (nil, false).
func (s *Store) Get(dotPath string) (interface{}, bool, error) {
	v, err := s.load()
	if err != nil {
		return nil, false, err
	}
	if !v.IsSet(dotPath) {
		return nil, false, nil
	}
	return v.Get(dotPath), true, nil
}

// Set records a user override at dotPath and persists atomically.
func (s *Store) Set(dotPath string, value interface{}) error {
	if strings.TrimSpace(dotPath) == "" {
		return fmt.Errorf("settings key cannot be empty")
	}
	doc, err := s.readOverrides()
	if err != nil {
		return err
	}
	if doc == nil {
		doc = make(map[string]interface{})
	}
	setPath(doc, strings.Split(dotPath, "."), value)
	return s.persist(doc)
}

// Reset removes the override at dotPath. Intermediate objects left empty are
// pruned. Resetting a key that has no override is a no-op.
func (s *Store) Reset(dotPath string) error {
	doc, err := s.readOverrides()
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	deletePath(doc, strings.Split(dotPath, "."))
	if len(doc) == 0 {
		return s.ResetAll()
	}
	return s.persist(doc)
}

// ResetAll deletes the settings file entirely; subsequent reads see only
// defaults.
func (s *Store) ResetAll() error {
	s.cached = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errs.Classify("remove settings", err)
	}
	return nil
}

// List returns the full effective settings tree (defaults merged under
// overrides).
func (s *Store) List() (map[string]interface{}, error) {
	v, err := s.load()
	if err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

// Keys returns the sorted set of known setting keys (defaults plus any
// override-only keys).
func (s *Store) Keys() ([]string, error) {
	v, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := v.AllKeys()
	return keys, nil
}

// persist writes the override document atomically and invalidates the cache.
func (s *Store) persist(doc map[string]interface{}) error {
	s.cached = nil
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	data = append(data, '\n')
	if err := safeio.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return errs.Classify("write settings", err)
	}
	return nil
}

// setPath sets value at the nested key path, creating intermediate objects.
// A non-object in the middle of the path is replaced.
func setPath(doc map[string]interface{}, path []string, value interface{}) {
	for _, key := range path[:len(path)-1] {
		child, ok := doc[key].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			doc[key] = child
		}
		doc = child
	}
	doc[path[len(path)-1]] = value
}

// deletePath removes the nested key and prunes empty intermediate objects.
func deletePath(doc map[string]interface{}, path []string) bool {
	if len(path) == 1 {
		if _, ok := doc[path[0]]; !ok {
			return false
		}
		delete(doc, path[0])
		return true
	}
	child, ok := doc[path[0]].(map[string]interface{})
	if !ok {
		return false
	}
	removed := deletePath(child, path[1:])
	if removed && len(child) == 0 {
		delete(doc, path[0])
	}
	return removed
}
