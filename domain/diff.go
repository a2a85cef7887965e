package domain

import "github.com/Masterminds/semver/v3"

// DiffKind classifies the change between two versions, following the npm
// semver "diff" convention: a "pre" prefix when either side carries a
// prerelease identifier, and a bare "prerelease" when only the prerelease
// identifiers differ.
type DiffKind string

const (
	DiffNone       DiffKind = "none"
	DiffPatch      DiffKind = "patch"
	DiffMinor      DiffKind = "minor"
	DiffMajor      DiffKind = "major"
	DiffPrepatch   DiffKind = "prepatch"
	DiffPreminor   DiffKind = "preminor"
	DiffPremajor   DiffKind = "premajor"
	DiffPrerelease DiffKind = "prerelease"
)

// Diff returns the diff class between two versions.
func Diff(a, b *semver.Version) DiffKind {
	if a.Equal(b) {
		return DiffNone
	}

	pre := a.Prerelease() != "" || b.Prerelease() != ""
	switch {
	case a.Major() != b.Major():
		if pre {
			return DiffPremajor
		}
		return DiffMajor
	case a.Minor() != b.Minor():
		if pre {
			return DiffPreminor
		}
		return DiffMinor
	case a.Patch() != b.Patch():
		if pre {
			return DiffPrepatch
		}
		return DiffPatch
	default:
		return DiffPrerelease
	}
}

// acceptedClasses builds the set of diff classes an upgrade may cross under
// the given ceiling, extended with the prerelease classes when usePre is set.
func acceptedClasses(ceiling Ceiling, usePre bool) map[DiffKind]bool {
	accepted := map[DiffKind]bool{DiffPatch: true}
	if ceiling != CeilingPatch {
		accepted[DiffMinor] = true
	}
	if ceiling != CeilingPatch && ceiling != CeilingMinor {
		accepted[DiffMajor] = true
	}

	if usePre {
		accepted[DiffPrerelease] = true
		accepted[DiffPrepatch] = accepted[DiffPatch]
		accepted[DiffPreminor] = accepted[DiffMinor]
		accepted[DiffPremajor] = accepted[DiffMajor]
	}
	return accepted
}
