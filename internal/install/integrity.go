package install

import (
	"os"
	"path/filepath"
)

// IssueKind tags one class of integrity problem.
type IssueKind int

const (
	IssueMissing IssueKind = iota
	IssueCorrupted
	IssueStalePath
)

// String returns the issue kind name used in reports.
func (k IssueKind) String() string {
	switch k {
	case IssueMissing:
		return "missing"
	case IssueCorrupted:
		return "corrupted"
	case IssueStalePath:
		return "stale_path"
	default:
		return "unknown"
	}
}

// Issue describes one problem with an installed file. Repairable is false
// for files outside the namespace allow-list: they are still reported, but
// repair never touches them.
type Issue struct {
	Kind          IssueKind
	RelativePath  string
	ExpectedHash  string
	ActualHash    string
	OffendingText string
	Repairable    bool
}

// IntegrityReport aggregates everything DetectIssues found.
type IntegrityReport struct {
	Missing    []Issue
	Corrupted  []Issue
	PathIssues []Issue
	// VersionMismatch is set when the VERSION marker disagrees with the
	// expected version (empty expected version skips the check).
	VersionMismatch  bool
	InstalledVersion string
}

// TotalIssues counts every detected issue, including the version mismatch.
func (r *IntegrityReport) TotalIssues() int {
	n := len(r.Missing) + len(r.Corrupted) + len(r.PathIssues)
	if r.VersionMismatch {
		n++
	}
	return n
}

// Issues returns all file issues in a single slice, missing first.
func (r *IntegrityReport) Issues() []Issue {
	out := make([]Issue, 0, len(r.Missing)+len(r.Corrupted)+len(r.PathIssues))
	out = append(out, r.Missing...)
	out = append(out, r.Corrupted...)
	out = append(out, r.PathIssues...)
	return out
}

// IntegrityChecker compares installed files against the manifest.
type IntegrityChecker struct {
	root Root
}

// NewIntegrityChecker creates a checker for root.
func NewIntegrityChecker(root Root) *IntegrityChecker {
	return &IntegrityChecker{root: root}
}

// DetectIssues walks every manifest entry and flags files that are missing,
// whose content hash no longer matches, or whose text still carries an
// unrewritten source-ecosystem path token. Entries outside the allow-list
// are checked for reporting but marked not repairable. expectedVersion, when
// non-empty, is compared against the VERSION marker.
func (c *IntegrityChecker) DetectIssues(manifest *Manifest, expectedVersion string) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	for _, entry := range manifest.Entries() {
		repairable := InAllowedNamespace(entry.RelativePath)
		path := filepath.Join(c.root.Path, filepath.FromSlash(entry.RelativePath))

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				report.Missing = append(report.Missing, Issue{
					Kind:         IssueMissing,
					RelativePath: entry.RelativePath,
					ExpectedHash: entry.Hash,
					Repairable:   repairable,
				})
				continue
			}
			return nil, err
		}

		if entry.Hash != "" {
			actual := HashBytes(data)
			if actual != entry.Hash {
				report.Corrupted = append(report.Corrupted, Issue{
					Kind:         IssueCorrupted,
					RelativePath: entry.RelativePath,
					ExpectedHash: entry.Hash,
					ActualHash:   actual,
					Repairable:   repairable,
				})
				// A corrupted file may also carry a stale token, but one
				// repair (re-copy) fixes both, so report it once.
				continue
			}
		}

		if isRewritableText(data) {
			if stale, offending := HasStalePathToken(data); stale {
				report.PathIssues = append(report.PathIssues, Issue{
					Kind:          IssueStalePath,
					RelativePath:  entry.RelativePath,
					OffendingText: offending,
					Repairable:    repairable,
				})
			}
		}
	}

	installed, err := NewVersionStore(c.root).Version()
	if err != nil {
		return nil, err
	}
	report.InstalledVersion = installed
	if expectedVersion != "" && installed != expectedVersion {
		report.VersionMismatch = true
	}

	return report, nil
}
