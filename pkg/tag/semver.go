package tag

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed semver 2 version: MAJOR.MINOR.PATCH[-PRE][+BUILD]
// (spec §4.5 "Semantic versioning"), grounded on
// original_source/libatomic/src/pristine/tag.rs's SemanticVersion.
type Version struct {
	Major, Minor, Patch uint64
	PreRelease          string // empty if absent
	Build               string // empty if absent
}

// ParseVersion parses a semver 2 string. Unlike the full spec grammar this
// does not validate pre-release/build identifier character classes beyond
// "non-empty"; this package provides parse, render and bump only, with no
// version comparison and no conformance suite.
func ParseVersion(s string) (Version, error) {
	rest := s
	var build string
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		build = rest[i+1:]
		rest = rest[:i]
		if build == "" {
			return Version{}, fmt.Errorf("tag: empty build metadata in version %q", s)
		}
	}
	var pre string
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		pre = rest[i+1:]
		rest = rest[:i]
		if pre == "" {
			return Version{}, fmt.Errorf("tag: empty pre-release in version %q", s)
		}
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("tag: invalid version %q: want MAJOR.MINOR.PATCH", s)
	}
	nums := make([]uint64, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("tag: invalid version component %q in %q: %w", p, s, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], PreRelease: pre, Build: build}, nil
}

// String renders v back to its canonical textual form.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// IncrementPatch bumps PATCH by one, clearing pre-release and build
// metadata (spec §4.5: "increment operations reset lower components").
func (v Version) IncrementPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// IncrementMinor bumps MINOR by one and resets PATCH to 0.
func (v Version) IncrementMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
}

// IncrementMajor bumps MAJOR by one and resets MINOR and PATCH to 0.
func (v Version) IncrementMajor() Version {
	return Version{Major: v.Major + 1, Minor: 0, Patch: 0}
}
