// Package versioning implements semantic version parsing and ordering for
// the versions gsd reads from VERSION files and the npm registry.
package versioning

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Comparison is the result of ordering two versions.
type Comparison int

const (
	ComparisonUnknown Comparison = iota
	ComparisonLess
	ComparisonEqual
	ComparisonGreater
)

// Int maps a Comparison onto the conventional -1/0/1 ordering value.
func (c Comparison) Int() int {
	switch c {
	case ComparisonLess:
		return -1
	case ComparisonGreater:
		return 1
	default:
		return 0
	}
}

var semverPattern = regexp.MustCompile(`^(?:[vV])?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?(?:\+([0-9A-Za-z.-]+))?$`)

type identifier struct {
	raw     string
	numeric bool
	num     int
}

type version struct {
	major int
	minor int
	patch int
	pre   []identifier
}

// IsValid reports whether s parses as a semantic version. A leading "v" is
// tolerated, matching npm's tag conventions.
func IsValid(s string) bool {
	_, err := parse(s)
	return err == nil
}

// Normalize trims whitespace and a leading "v"/"V" prefix.
func Normalize(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 1 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		return trimmed[1:]
	}
	return trimmed
}

// Compare determines semantic-version ordering between a and b.
// Prerelease identifiers order below their release per SemVer 2.0.0; build
// metadata is ignored.
func Compare(a, b string) (Comparison, error) {
	av, err := parse(a)
	if err != nil {
		return ComparisonUnknown, fmt.Errorf("invalid semver '%s': %w", a, err)
	}
	bv, err := parse(b)
	if err != nil {
		return ComparisonUnknown, fmt.Errorf("invalid semver '%s': %w", b, err)
	}
	return compare(av, bv), nil
}

func parse(input string) (*version, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, errors.New("empty version")
	}

	matches := semverPattern.FindStringSubmatch(trimmed)
	if len(matches) == 0 {
		return nil, errors.New("invalid format")
	}

	v := &version{}
	var err error
	for i, dst := range []*int{&v.major, &v.minor, &v.patch} {
		segment := matches[i+1]
		if len(segment) > 1 && strings.HasPrefix(segment, "0") {
			return nil, errors.New("leading zeros not allowed")
		}
		if *dst, err = strconv.Atoi(segment); err != nil {
			return nil, fmt.Errorf("segment '%s': %w", segment, err)
		}
	}

	if prerelease := matches[4]; prerelease != "" {
		parts := strings.Split(prerelease, ".")
		v.pre = make([]identifier, len(parts))
		for i, part := range parts {
			if part == "" {
				return nil, errors.New("invalid prerelease identifier: empty segment")
			}
			if isNumeric(part) {
				if len(part) > 1 && strings.HasPrefix(part, "0") {
					return nil, errors.New("invalid prerelease identifier: leading zeros not allowed")
				}
				num, err := strconv.Atoi(part)
				if err != nil {
					return nil, fmt.Errorf("invalid prerelease identifier '%s': %w", part, err)
				}
				v.pre[i] = identifier{raw: part, numeric: true, num: num}
			} else {
				v.pre[i] = identifier{raw: part}
			}
		}
	}

	return v, nil
}

func compare(a, b *version) Comparison {
	if a.major != b.major {
		return orderInts(a.major, b.major)
	}
	if a.minor != b.minor {
		return orderInts(a.minor, b.minor)
	}
	if a.patch != b.patch {
		return orderInts(a.patch, b.patch)
	}

	// Release > prerelease of the same core version.
	if len(a.pre) == 0 && len(b.pre) == 0 {
		return ComparisonEqual
	}
	if len(a.pre) == 0 {
		return ComparisonGreater
	}
	if len(b.pre) == 0 {
		return ComparisonLess
	}

	limit := len(a.pre)
	if len(b.pre) < limit {
		limit = len(b.pre)
	}
	for i := 0; i < limit; i++ {
		ai, bi := a.pre[i], b.pre[i]
		switch {
		case ai.numeric && bi.numeric:
			if ai.num != bi.num {
				return orderInts(ai.num, bi.num)
			}
		case ai.numeric:
			// Numeric identifiers order below alphanumeric ones.
			return ComparisonLess
		case bi.numeric:
			return ComparisonGreater
		default:
			if ai.raw != bi.raw {
				if ai.raw < bi.raw {
					return ComparisonLess
				}
				return ComparisonGreater
			}
		}
	}
	return orderInts(len(a.pre), len(b.pre))
}

func orderInts(a, b int) Comparison {
	if a < b {
		return ComparisonLess
	}
	if a > b {
		return ComparisonGreater
	}
	return ComparisonEqual
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
