// Package version provides parsing, validation, and bumping of the
// MAJOR.MINOR.PATCH version strings carried in the project descriptor.
//
// A version may carry a qualifier such as -SNAPSHOT on read; bumping always
// produces a bare numeric triple, matching the behavior of Maven's
// build-helper nextIncrementalVersion properties.
package version

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalid indicates a string that does not parse as MAJOR.MINOR.PATCH
// with an optional qualifier.
var ErrInvalid = errors.New("invalid version")

// pattern gates input before semver parsing: a strict numeric triple with an
// optional dash-separated qualifier. Build metadata (+...) is rejected since
// Maven versions never carry it.
var pattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z][0-9A-Za-z.-]*)?$`)

// Part identifies which component of a version a bump applies to.
type Part int

const (
	// Patch bumps the third component.
	Patch Part = iota
	// Minor bumps the second component and zeroes the patch.
	Minor
	// Major bumps the first component and zeroes minor and patch.
	Major
)

// String returns the lowercase name of the part.
func (p Part) String() string {
	switch p {
	case Major:
		return "major"
	case Minor:
		return "minor"
	case Patch:
		return "patch"
	default:
		return fmt.Sprintf("part(%d)", int(p))
	}
}

// ParsePart maps a user-supplied name to a Part.
func ParsePart(s string) (Part, error) {
	switch s {
	case "major":
		return Major, nil
	case "minor":
		return Minor, nil
	case "patch":
		return Patch, nil
	default:
		return Patch, fmt.Errorf("unknown version part %q (want major, minor, or patch)", s)
	}
}

// Version is an immutable semantic version value.
type Version struct {
	v *semver.Version
}

// Parse validates and parses a version string.
// Returns an error wrapping ErrInvalid for malformed input.
func Parse(s string) (Version, error) {
	if !pattern.MatchString(s) {
		return Version{}, fmt.Errorf("%w: %q does not match MAJOR.MINOR.PATCH", ErrInvalid, s)
	}
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return Version{v: v}, nil
}

// MustParse parses a version string and panics on failure.
// Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Major returns the first numeric component.
func (v Version) Major() uint64 { return v.v.Major() }

// Minor returns the second numeric component.
func (v Version) Minor() uint64 { return v.v.Minor() }

// Patch returns the third numeric component.
func (v Version) Patch() uint64 { return v.v.Patch() }

// Qualifier returns the dash qualifier (for example "SNAPSHOT"), or an
// empty string when the version is a bare triple.
func (v Version) Qualifier() string { return v.v.Prerelease() }

// IsSnapshot reports whether the version carries the Maven SNAPSHOT qualifier.
func (v Version) IsSnapshot() bool { return v.v.Prerelease() == "SNAPSHOT" }

// String returns the canonical version string.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// IsZero reports whether v is the zero value (not a parsed version).
func (v Version) IsZero() bool { return v.v == nil }

// Bump returns the next version for the given part. The numeric component is
// always incremented and any qualifier is dropped, so 1.2.3-SNAPSHOT bumped
// at patch level yields 1.2.4, not 1.2.3.
func (v Version) Bump(part Part) Version {
	major, minor, patch := v.v.Major(), v.v.Minor(), v.v.Patch()
	switch part {
	case Major:
		major, minor, patch = major+1, 0, 0
	case Minor:
		minor, patch = minor+1, 0
	case Patch:
		patch++
	}
	return MustParse(fmt.Sprintf("%d.%d.%d", major, minor, patch))
}

// Compare returns -1, 0, or 1 when v is less than, equal to, or greater
// than o, using semantic version ordering (qualified versions sort below
// their bare triple).
func (v Version) Compare(o Version) int { return v.v.Compare(o.v) }

// Equal reports whether two versions are semantically equal.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// LessThan reports whether v orders before o.
func (v Version) LessThan(o Version) bool { return v.Compare(o) < 0 }
