package domain

import (
	"time"

	"github.com/Masterminds/semver/v3"
	modsemver "golang.org/x/mod/semver"
)

// Resolve selects the version a semver-range dependency should upgrade to,
// given the package's catalog and the effective policy. It returns the chosen
// concrete version, or "" when nothing qualifies.
//
// The selection runs in two phases: a scan over the catalog under the
// policy's accepted diff classes, then a reconciliation against the
// registry's "latest" dist-tag. The dist-tag is a publisher-curated signal
// that can legitimately disagree with the newest version passing the numeric
// filters, so it gets the final word except where the user's ceiling or
// release-only/downgrade settings say otherwise.
func Resolve(oldRange string, catalog CatalogEntry, pol EffectivePolicy) string {
	base := CoerceRange(oldRange)
	usePre := base.Prerelease() != "" || pol.UsePrerelease
	accepted := acceptedClasses(pol.Ceiling, usePre)

	// Without publish timestamps, latest mode has nothing to order by.
	greatest := pol.UseGreatest || !hasPublishTimes(catalog)

	candidate := scanCatalog(base, catalog, accepted, pol, usePre, greatest)

	resolved := candidate
	if !greatest {
		resolved = reconcileLatestTag(base, candidate, catalog.LatestTag, accepted, pol)
	}

	if resolved == nil || resolved.Equal(base) {
		return ""
	}
	return resolved.Original()
}

func hasPublishTimes(catalog CatalogEntry) bool {
	for _, rec := range catalog.Versions {
		if rec.PublishedAt != nil {
			return true
		}
	}
	return false
}

// scanCatalog picks the best in-range candidate: the maximum qualifying
// version in greatest mode, otherwise the most recently published one.
func scanCatalog(
	base *semver.Version,
	catalog CatalogEntry,
	accepted map[DiffKind]bool,
	pol EffectivePolicy,
	usePre, greatest bool,
) *semver.Version {
	var best *semver.Version
	var bestTime time.Time

	for _, rec := range catalog.Versions {
		v, err := semver.NewVersion(rec.Version)
		if err != nil {
			continue // malformed catalog entries are skipped, not fatal
		}
		if v.Prerelease() != "" && (pol.ReleaseOnly || !usePre) {
			continue
		}
		if base.Prerelease() == "" && !pol.AllowDowngrade && !v.GreaterThan(base) {
			continue
		}
		if d := Diff(base, v); d == DiffNone || !accepted[d] {
			continue
		}

		if greatest {
			if best == nil || v.GreaterThan(best) {
				best = v
			}
			continue
		}

		if rec.PublishedAt == nil {
			continue // latest mode needs a timestamp to order by
		}
		if best == nil || rec.PublishedAt.After(bestTime) {
			best, bestTime = v, *rec.PublishedAt
		}
	}

	return best
}

// reconcileLatestTag applies the dist-tag cascade on top of the scanned
// candidate. The ordering of these checks is deliberate and mirrors how
// registry tooling treats the "latest" tag; see the package tests for the
// exact contract.
func reconcileLatestTag(
	base, candidate *semver.Version,
	latestTag string,
	accepted map[DiffKind]bool,
	pol EffectivePolicy,
) *semver.Version {
	latest, err := semver.NewVersion(latestTag)
	if err != nil {
		return candidate
	}

	if latest.Prerelease() != "" {
		// A prerelease tagged "latest" is authoritative, unless the caller
		// asked for releases only. A bare prerelease bump is reachable even
		// when the accepted classes do not include prerelease diffs.
		if pol.ReleaseOnly {
			return candidate
		}
		if candidate == nil || !candidate.Equal(latest) {
			if d := Diff(base, latest); accepted[d] || d == DiffPrerelease {
				return latest
			}
		}
		return candidate
	}

	if base.Prerelease() != "" {
		// Prerelease -> release transitions are allowed once a strictly
		// newer qualifying release exists.
		if candidate != nil && candidate.Prerelease() == "" && candidate.GreaterThan(base) {
			return candidate
		}
		if latest.GreaterThan(base) && accepted[Diff(base, latest)] {
			return latest
		}
		if pol.ReleaseOnly && candidate != nil && candidate.Prerelease() == "" {
			// Release-only permits stepping back to the nearest release.
			return candidate
		}
		// Never silently regress off a prerelease track.
		return nil
	}

	if d := Diff(base, latest); d != DiffNone && d != DiffPrerelease && !accepted[d] {
		// The publisher tagged something outside the requested ceiling;
		// fall back to the best in-range candidate.
		return candidate
	}

	if latest.LessThan(base) {
		// A true downgrade via the latest tag needs explicit opt-in. Without
		// it the publisher's backward tag suppresses the whole resolution,
		// newer in-range versions included.
		if pol.AllowDowngrade {
			return latest
		}
		return nil
	}

	if candidate != nil && candidate.Prerelease() != "" && candidate.GreaterThan(latest) {
		// With prereleases enabled, a prerelease beyond the tagged release
		// stays preferred; the tag only points away from the numeric max for
		// release targeting.
		return candidate
	}

	return latest
}

// ResolveReference selects the next reference for a commit- or tag-pinned
// VCS dependency, or "" when nothing changed.
func ResolveReference(oldRef string, refs ReferenceCatalog, pol EffectivePolicy) string {
	if commitHashPattern.MatchString(oldRef) {
		return resolveCommit(oldRef, refs.Commits)
	}
	return resolveTag(oldRef, refs.Tags, pol.UseGreatest)
}

// resolveCommit compares the newest known commit against the pinned hash over
// the pinned hash's length, tolerating abbreviated forms.
func resolveCommit(oldRef string, commits []RefRecord) string {
	if len(commits) == 0 {
		return ""
	}
	newest := commits[0].Ref
	if len(newest) > len(oldRef) {
		newest = newest[:len(oldRef)]
	}
	if newest == oldRef {
		return ""
	}
	return newest
}

// resolveTag picks the last-listed semver tag (default) or the greatest by
// semver order. A result is produced only when it differs from the old tag
// under semver inequality.
func resolveTag(oldRef string, tags []RefRecord, greatest bool) string {
	var chosen string
	for _, tag := range tags {
		if _, err := semver.NewVersion(tag.Ref); err != nil {
			continue
		}
		if chosen == "" || !greatest || tagCompare(tag.Ref, chosen) > 0 {
			chosen = tag.Ref
		}
	}
	if chosen == "" {
		return ""
	}

	oldV, err := semver.NewVersion(oldRef)
	if err != nil {
		return chosen
	}
	chosenV, err := semver.NewVersion(chosen)
	if err != nil || chosenV.Equal(oldV) {
		return ""
	}
	return chosen
}

// tagCompare orders two version-like tags, tolerating a missing v prefix.
func tagCompare(a, b string) int {
	return modsemver.Compare(ensureV(a), ensureV(b))
}

func ensureV(tag string) string {
	if len(tag) > 0 && (tag[0] == 'v' || tag[0] == 'V') {
		return "v" + tag[1:]
	}
	return "v" + tag
}
