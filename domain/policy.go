package domain

import "fmt"

// Ceiling restricts the semver diff classes an upgrade may cross.
type Ceiling int

const (
	CeilingMajor Ceiling = iota
	CeilingMinor
	CeilingPatch
)

// ParseCeiling converts a CLI/config target string into a Ceiling.
func ParseCeiling(s string) (Ceiling, error) {
	switch s {
	case "", "major", "latest":
		return CeilingMajor, nil
	case "minor":
		return CeilingMinor, nil
	case "patch":
		return CeilingPatch, nil
	default:
		return CeilingMajor, fmt.Errorf("unknown target %q (expected patch, minor, or major)", s)
	}
}

func (c Ceiling) String() string {
	switch c {
	case CeilingPatch:
		return "patch"
	case CeilingMinor:
		return "minor"
	default:
		return "major"
	}
}

type filterMode int

const (
	filterNone filterMode = iota
	filterAll
	filterSpecific
)

// PackageFilter answers "does this policy flag apply to the given package?".
// It is either off for all packages, on for all packages, or on for a
// specific named set.
type PackageFilter struct {
	mode  filterMode
	names map[string]struct{}
}

// NoPackages returns a filter that applies to nothing. Zero value equivalent.
func NoPackages() PackageFilter {
	return PackageFilter{mode: filterNone}
}

// AllPackages returns a filter that applies to every package.
func AllPackages() PackageFilter {
	return PackageFilter{mode: filterAll}
}

// SpecificPackages returns a filter that applies only to the named packages.
// An empty list behaves like NoPackages.
func SpecificPackages(names ...string) PackageFilter {
	if len(names) == 0 {
		return NoPackages()
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return PackageFilter{mode: filterSpecific, names: set}
}

// AppliesTo reports whether the flag behind this filter is enabled for name.
func (f PackageFilter) AppliesTo(name string) bool {
	switch f.mode {
	case filterAll:
		return true
	case filterSpecific:
		_, ok := f.names[name]
		return ok
	default:
		return false
	}
}

// Policy holds the per-invocation resolution settings. Each flag can apply to
// all packages or to a named subset.
type Policy struct {
	Prerelease     PackageFilter
	Greatest       PackageFilter
	ReleaseOnly    PackageFilter
	AllowDowngrade PackageFilter
	Ceiling        Ceiling
}

// EffectivePolicy is a Policy evaluated for one concrete package.
type EffectivePolicy struct {
	UsePrerelease  bool
	UseGreatest    bool
	ReleaseOnly    bool
	AllowDowngrade bool
	Ceiling        Ceiling
}

// For evaluates the policy for the named package.
func (p Policy) For(name string) EffectivePolicy {
	return EffectivePolicy{
		UsePrerelease:  p.Prerelease.AppliesTo(name),
		UseGreatest:    p.Greatest.AppliesTo(name),
		ReleaseOnly:    p.ReleaseOnly.AppliesTo(name),
		AllowDowngrade: p.AllowDowngrade.AppliesTo(name),
		Ceiling:        p.Ceiling,
	}
}
