package domain

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// SpecifierKind is the classification of a declared dependency specifier.
type SpecifierKind int

const (
	// KindExcluded marks specifiers that are neither a semver range nor a
	// recognized VCS reference. They are skipped, not treated as errors.
	KindExcluded SpecifierKind = iota
	// KindSemverRange marks specifiers that parse as a semver range.
	KindSemverRange
	// KindCommitReference marks GitHub URLs pinned to a commit hash.
	KindCommitReference
	// KindTagReference marks GitHub URLs pinned to a version-like tag.
	KindTagReference
)

// GitHubReference is a parsed GitHub URL specifier.
type GitHubReference struct {
	Owner string
	Repo  string
	Ref   string
}

var (
	githubURLPattern = regexp.MustCompile(
		`^(?:git\+)?(?:https?|git|ssh)://(?:git@)?(?:www\.)?github\.com/([\w.-]+)/([\w.-]+?)(?:\.git)?#(.+)$`)
	githubShortPattern = regexp.MustCompile(`^github:([\w.-]+)/([\w.-]+?)(?:\.git)?#(.+)$`)

	commitHashPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
	versionTagPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?$`)
)

// Classify decides how a declared specifier will be resolved: as a semver
// range against the registry, as a GitHub commit or tag reference, or not at
// all. References must be replaced wholesale with a new ref, so they take a
// different resolution path than ranges.
func Classify(specifier string) SpecifierKind {
	if specifier == "" {
		return KindExcluded
	}
	if _, err := semver.NewConstraint(specifier); err == nil {
		return KindSemverRange
	}

	ref, ok := ParseGitHubReference(specifier)
	if !ok {
		return KindExcluded
	}
	switch {
	case commitHashPattern.MatchString(ref.Ref):
		return KindCommitReference
	case versionTagPattern.MatchString(ref.Ref):
		return KindTagReference
	default:
		return KindExcluded
	}
}

// ParseGitHubReference extracts owner, repo, and ref from a GitHub URL
// specifier, accepting both full URLs and the github: shorthand.
func ParseGitHubReference(specifier string) (GitHubReference, bool) {
	for _, pattern := range []*regexp.Regexp{githubURLPattern, githubShortPattern} {
		if m := pattern.FindStringSubmatch(specifier); m != nil {
			return GitHubReference{Owner: m[1], Repo: m[2], Ref: m[3]}, true
		}
	}
	return GitHubReference{}, false
}
