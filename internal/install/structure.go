package install

import (
	"os"
	"path/filepath"
)

// StructureType classifies the on-disk directory layout of an installation.
// It is derived, never stored: a half-finished migration can change it
// between invocations, so every update and repair re-detects.
type StructureType int

const (
	StructureNone StructureType = iota
	StructureOld
	StructureNew
	StructureDual
)

// String returns the layout name used in command output.
func (s StructureType) String() string {
	switch s {
	case StructureNone:
		return "none"
	case StructureOld:
		return "old"
	case StructureNew:
		return "new"
	case StructureDual:
		return "dual"
	default:
		return "unknown"
	}
}

const (
	// oldLayoutDir is the legacy flat directory earlier releases installed
	// into.
	oldLayoutDir = "gsd"
	// newLayoutDir is the current workflow directory.
	newLayoutDir = "get-shit-done"
)

// DetectStructure inspects the root and classifies its layout. Both marker
// directories present means an interrupted or inconsistent migration.
func DetectStructure(root Root) StructureType {
	oldPresent := dirExists(filepath.Join(root.Path, oldLayoutDir))
	newPresent := dirExists(filepath.Join(root.Path, newLayoutDir))

	switch {
	case oldPresent && newPresent:
		return StructureDual
	case oldPresent:
		return StructureOld
	case newPresent:
		return StructureNew
	default:
		return StructureNone
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
