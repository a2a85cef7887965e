package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nextver/nextver/domain"
	"github.com/nextver/nextver/infrastructure/github"
	"github.com/nextver/nextver/infrastructure/manifest"
	"github.com/nextver/nextver/infrastructure/registry"
	"github.com/nextver/nextver/infrastructure/report"
)

const defaultConcurrency = 8

// CatalogClient supplies registry catalogs to the resolution engine.
type CatalogClient interface {
	FetchCatalog(ctx context.Context, name string) (*domain.CatalogEntry, error)
}

// ReferenceClient supplies VCS reference catalogs for pinned dependencies.
type ReferenceClient interface {
	FetchReferences(ctx context.Context, ref domain.GitHubReference, wantTags bool) (*domain.ReferenceCatalog, error)
}

// CheckService runs the full check cycle: scan the manifest, fetch catalogs
// concurrently, resolve each dependency under the policy, and report.
type CheckService struct {
	catalogs   CatalogClient
	references ReferenceClient
}

// NewCheckService creates a service with the given catalog suppliers.
func NewCheckService(catalogs CatalogClient, references ReferenceClient) *CheckService {
	return &CheckService{
		catalogs:   catalogs,
		references: references,
	}
}

// CheckOptions holds the runtime options for a single run.
type CheckOptions struct {
	ManifestPath string
	Sections     []string
	Filter       []string
	Policy       domain.Policy
	Concurrency  int
	Write        bool
	Now          time.Time // zero means time.Now, fixed in tests
}

// CheckResult is the outcome of a run: the updated dependencies in manifest
// order, plus whether the manifest was rewritten.
type CheckResult struct {
	Resolutions []domain.Resolution
	Total       int
	Written     bool
}

// fetchOutcome pairs one dependency with whatever its fetch produced.
type fetchOutcome struct {
	catalog *domain.CatalogEntry
	refs    *domain.ReferenceCatalog
	kind    domain.SpecifierKind
	err     error
}

// Run executes a check. Configuration errors (unreadable manifest, nothing to
// check) and transport failures against the default registry are returned;
// per-dependency registry errors only drop that dependency.
func (s *CheckService) Run(ctx context.Context, opts CheckOptions) (*CheckResult, error) {
	doc, err := manifest.Load(opts.ManifestPath)
	if err != nil {
		return nil, err
	}

	deps := filterByName(doc.Dependencies(opts.Sections), opts.Filter)
	if len(deps) == 0 {
		return nil, errors.New("no dependencies match the requested sections and filters")
	}
	logger.Debugf("[check] Considering %d dependencies from %s", len(deps), opts.ManifestPath)

	outcomes, err := s.fetchAll(ctx, deps, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	result := &CheckResult{Total: len(deps)}
	for i, dep := range deps {
		res := s.resolveOne(dep, outcomes[i], opts.Policy, now)
		if res.Updated() {
			result.Resolutions = append(result.Resolutions, res)
		}
	}

	if opts.Write && len(result.Resolutions) > 0 {
		if writeErr := s.writeManifest(opts.ManifestPath, doc.Raw(), result.Resolutions); writeErr != nil {
			// prior computed results still matter; the caller prints them
			return result, writeErr
		}
		result.Written = true
	}

	return result, nil
}

// fetchAll issues all catalog lookups concurrently under a shared ceiling.
// Results land in a pre-sized slice so output keeps manifest order.
func (s *CheckService) fetchAll(
	ctx context.Context,
	deps []domain.Dependency,
	concurrency int,
) ([]fetchOutcome, error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	outcomes := make([]fetchOutcome, len(deps))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, dep := range deps {
		i, dep := i, dep
		group.Go(func() error {
			outcomes[i] = s.fetchOne(groupCtx, dep)
			if err := outcomes[i].err; err != nil && isFatalFetch(err, outcomes[i].kind) {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *CheckService) fetchOne(ctx context.Context, dep domain.Dependency) fetchOutcome {
	kind := domain.Classify(dep.Specifier)
	outcome := fetchOutcome{kind: kind}

	switch kind {
	case domain.KindSemverRange:
		outcome.catalog, outcome.err = s.catalogs.FetchCatalog(ctx, dep.Name)
	case domain.KindCommitReference, domain.KindTagReference:
		ref, _ := domain.ParseGitHubReference(dep.Specifier)
		outcome.refs, outcome.err = s.references.FetchReferences(ctx, ref, kind == domain.KindTagReference)
	default:
		// unrecognized specifiers are silently excluded
	}

	return outcome
}

// isFatalFetch separates registry transport failures (which abort the run)
// from per-package registry responses and reference lookups, which only drop
// their own dependency.
func isFatalFetch(err error, kind domain.SpecifierKind) bool {
	if kind != domain.KindSemverRange {
		return false
	}
	var statusErr *registry.StatusError
	return !errors.As(err, &statusErr)
}

func (s *CheckService) resolveOne(
	dep domain.Dependency,
	outcome fetchOutcome,
	policy domain.Policy,
	now time.Time,
) domain.Resolution {
	res := domain.Resolution{
		Name:         dep.Name,
		Section:      dep.Section,
		OldSpecifier: dep.Specifier,
	}

	if outcome.err != nil {
		logger.Warnf("[check] Skipping %s: %v", dep.Name, outcome.err)
		return res
	}

	pol := policy.For(dep.Name)

	switch outcome.kind {
	case domain.KindSemverRange:
		version := domain.Resolve(dep.Specifier, *outcome.catalog, pol)
		if version == "" {
			return res
		}
		res.NewSpecifier = domain.RewriteRange(dep.Specifier, version)
		res.InfoURL = registry.InfoURL(dep.Name)
		if published := outcome.catalog.PublishedAt(version); published != nil {
			res.Age = report.FormatAge(*published, now)
		}

	case domain.KindCommitReference, domain.KindTagReference:
		ref, _ := domain.ParseGitHubReference(dep.Specifier)
		newRef := domain.ResolveReference(ref.Ref, *outcome.refs, pol)
		if newRef == "" {
			return res
		}
		res.NewSpecifier = strings.Replace(dep.Specifier, "#"+ref.Ref, "#"+newRef, 1)
		res.InfoURL = github.RepoURL(ref)
	}

	return res
}

func (s *CheckService) writeManifest(path string, raw []byte, resolutions []domain.Resolution) error {
	patched, err := manifest.Patch(raw, resolutions)
	if err != nil {
		return fmt.Errorf("failed to patch manifest: %w", err)
	}

	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}

	if writeErr := os.WriteFile(path, patched, mode); writeErr != nil {
		return fmt.Errorf("failed to write manifest %q: %w", path, writeErr)
	}

	logger.Infof("[check] Rewrote %d dependencies in %s", len(resolutions), path)
	return nil
}

func filterByName(deps []domain.Dependency, filter []string) []domain.Dependency {
	if len(filter) == 0 {
		return deps
	}

	var kept []domain.Dependency
	for _, dep := range deps {
		for _, name := range filter {
			if dep.Name == name || strings.Contains(dep.Name, name) {
				kept = append(kept, dep)
				break
			}
		}
	}
	return kept
}
