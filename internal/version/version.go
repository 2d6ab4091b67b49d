// Package version parses and orders the version strings attached to upgrade
// targets and pipeline entries.
package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// ErrInvalid is wrapped by Parse for malformed version strings.
var ErrInvalid = errors.New("invalid version")

// Version is a parsed, comparable version. The zero value is 0.0.0.
type Version struct {
	raw    string
	parsed semver.Version
}

// Parse accepts dotted numeric versions with one to three components and an
// optional "v" prefix, pre-release and build suffixes ("1.0", "v2.1.3",
// "3.0.0-rc.1").
func Parse(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Version{}, fmt.Errorf("%w: version string is empty", ErrInvalid)
	}

	parsed, err := semver.ParseTolerant(trimmed)
	if err != nil {
		return Version{}, fmt.Errorf("%w %q: %v", ErrInvalid, s, err)
	}
	return Version{raw: trimmed, parsed: parsed}, nil
}

// MustParse panics if the version cannot be parsed.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 depending on whether v sorts before, equal to
// or after other.
func (v Version) Compare(other Version) int {
	return v.parsed.Compare(other.parsed)
}

// Equal reports whether both versions have the same precedence.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// GTE reports whether v sorts at or after other.
func (v Version) GTE(other Version) bool {
	return v.Compare(other) >= 0
}

// IsZero reports whether v is the zero version.
func (v Version) IsZero() bool {
	return v.raw == "" && v.parsed.Equals(semver.Version{})
}

// String returns the version as it was written, so stored versions round-trip
// unchanged. Zero values render as their canonical form.
func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}
	return v.parsed.String()
}

// Canonical returns the normalized major.minor.patch form.
func (v Version) Canonical() string {
	return v.parsed.String()
}
