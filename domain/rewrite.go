package domain

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// versionToken matches the embedded version-like substring of a range:
// dotted numerics (with x/X/* wildcard segments) plus an optional
// prerelease/build suffix.
var versionToken = regexp.MustCompile(`\d+(?:\.(?:\d+|[xX*]))*(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?`)

// RewriteRange replaces the version substring embedded in oldRange with
// newVersion, preserving every other character (operators, whitespace,
// wildcard-only ranges) verbatim. Ranges without a version-like substring
// are returned unchanged.
func RewriteRange(oldRange, newVersion string) string {
	loc := versionToken.FindStringIndex(oldRange)
	if loc == nil {
		return oldRange
	}
	return oldRange[:loc[0]] + newVersion + oldRange[loc[1]:]
}

// anchorPattern extracts the numeric anchor of a range for coercion.
var anchorPattern = regexp.MustCompile(`(\d+)(?:\.(\d+|[xX*]))?(?:\.(\d+|[xX*]))?(-[0-9A-Za-z.-]+)?`)

// CoerceRange derives the concrete base version implied by a range, filling
// missing or wildcard segments with zero. Un-coercible ranges yield 0.0.0.
func CoerceRange(r string) *semver.Version {
	m := anchorPattern.FindStringSubmatch(r)
	if m == nil {
		return semver.New(0, 0, 0, "", "")
	}

	minor, patch := m[2], m[3]
	if minor == "" || minor == "x" || minor == "X" || minor == "*" {
		minor = "0"
	}
	if patch == "" || patch == "x" || patch == "X" || patch == "*" {
		patch = "0"
	}

	v, err := semver.NewVersion(m[1] + "." + minor + "." + patch + m[4])
	if err != nil {
		return semver.New(0, 0, 0, "", "")
	}
	return v
}
