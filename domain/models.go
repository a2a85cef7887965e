package domain

import "time"

// Dependency represents a single declared dependency from a manifest section.
type Dependency struct {
	Name      string // Package name, unique within its section
	Specifier string // Declared range or VCS reference
	Section   string // Owning section (e.g. "dependencies", "devDependencies")
}

// VersionRecord is one published version of a package. PublishedAt is nil
// when the registry reports no timestamp for the version.
type VersionRecord struct {
	Version     string
	PublishedAt *time.Time
}

// CatalogEntry holds everything the resolution engine needs to know about a
// registry package: the published versions and the curated "latest" dist-tag.
type CatalogEntry struct {
	Versions  []VersionRecord
	LatestTag string
}

// PublishedAt returns the publish timestamp of the given version, or nil when
// the catalog has no record for it.
func (c CatalogEntry) PublishedAt(version string) *time.Time {
	for _, rec := range c.Versions {
		if rec.Version == version {
			return rec.PublishedAt
		}
	}
	return nil
}

// RefRecord is a single VCS reference (commit hash or tag name).
type RefRecord struct {
	Ref  string
	Date *time.Time
}

// ReferenceCatalog holds the known references of a VCS-pinned dependency.
// Commits are ordered newest first; Tags keep source order, newest last.
type ReferenceCatalog struct {
	Commits []RefRecord
	Tags    []RefRecord
}

// Resolution is the outcome of resolving one dependency. An empty
// NewSpecifier means "no change"; such resolutions are dropped from output.
type Resolution struct {
	Name         string
	Section      string
	OldSpecifier string
	NewSpecifier string
	InfoURL      string
	Age          string
}

// Updated reports whether the resolution carries an actual upgrade.
func (r Resolution) Updated() bool {
	return r.NewSpecifier != "" && r.NewSpecifier != r.OldSpecifier
}
