package application_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextver/nextver/application"
	"github.com/nextver/nextver/domain"
	"github.com/nextver/nextver/infrastructure/registry"
)

// stubCatalogClient serves catalogs from a fixed map and fails the rest.
type stubCatalogClient struct {
	catalogs map[string]domain.CatalogEntry
	errs     map[string]error
}

func (s *stubCatalogClient) FetchCatalog(_ context.Context, name string) (*domain.CatalogEntry, error) {
	if err, ok := s.errs[name]; ok {
		return nil, err
	}
	if entry, ok := s.catalogs[name]; ok {
		return &entry, nil
	}
	return nil, &registry.StatusError{Package: name, Registry: registry.DefaultURL, Code: 404}
}

// stubReferenceClient serves one fixed reference catalog.
type stubReferenceClient struct {
	refs domain.ReferenceCatalog
	err  error
}

func (s *stubReferenceClient) FetchReferences(
	_ context.Context, _ domain.GitHubReference, _ bool,
) (*domain.ReferenceCatalog, error) {
	if s.err != nil {
		return nil, s.err
	}
	refs := s.refs
	return &refs, nil
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

const testManifest = `{
  "dependencies": {
    "express": "^4.18.2",
    "left-pad": "1.3.0",
    "widgets": "github:acme/widgets#abc1234"
  },
  "devDependencies": {
    "typescript": "5.3.3"
  }
}
`

func testCatalogs() map[string]domain.CatalogEntry {
	return map[string]domain.CatalogEntry{
		"express": {
			Versions: []domain.VersionRecord{
				{Version: "4.18.2", PublishedAt: ts("2023-01-01T00:00:00Z")},
				{Version: "5.0.0", PublishedAt: ts("2025-01-01T00:00:00Z")},
			},
			LatestTag: "5.0.0",
		},
		"left-pad": {
			Versions: []domain.VersionRecord{
				{Version: "1.3.0", PublishedAt: ts("2018-01-01T00:00:00Z")},
			},
			LatestTag: "1.3.0",
		},
		"typescript": {
			Versions: []domain.VersionRecord{
				{Version: "5.3.3", PublishedAt: ts("2024-01-01T00:00:00Z")},
				{Version: "5.4.0", PublishedAt: ts("2024-03-01T00:00:00Z")},
			},
			LatestTag: "5.4.0",
		},
	}
}

func TestCheckServiceRun(t *testing.T) {
	t.Parallel()

	newestCommit := domain.RefRecord{
		Ref:  "9db1a9b4f1c8e2d30a9f5b7c6d4e3f2a1b0c9d8e",
		Date: ts("2025-04-01T00:00:00Z"),
	}

	t.Run("should resolve updates in manifest order and drop no-changes", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: testCatalogs()},
			&stubReferenceClient{refs: domain.ReferenceCatalog{Commits: []domain.RefRecord{newestCommit}}},
		)
		opts := application.CheckOptions{
			ManifestPath: writeManifest(t, testManifest),
			Now:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		assert.Equal(t, 4, result.Total)
		require.Len(t, result.Resolutions, 3)

		assert.Equal(t, "express", result.Resolutions[0].Name)
		assert.Equal(t, "^5.0.0", result.Resolutions[0].NewSpecifier)
		assert.Equal(t, "12 months", result.Resolutions[0].Age)
		assert.Equal(t, "https://www.npmjs.com/package/express", result.Resolutions[0].InfoURL)

		assert.Equal(t, "widgets", result.Resolutions[1].Name)
		assert.Equal(t, "github:acme/widgets#9db1a9b", result.Resolutions[1].NewSpecifier)
		assert.Equal(t, "https://github.com/acme/widgets", result.Resolutions[1].InfoURL)

		assert.Equal(t, "typescript", result.Resolutions[2].Name)
		assert.Equal(t, "devDependencies", result.Resolutions[2].Section)
		assert.Equal(t, "5.4.0", result.Resolutions[2].NewSpecifier)
	})

	t.Run("should isolate a per-dependency registry failure", func(t *testing.T) {
		t.Parallel()

		// given
		catalogs := testCatalogs()
		delete(catalogs, "express") // stub answers 404 for unknown names
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: catalogs},
			&stubReferenceClient{refs: domain.ReferenceCatalog{Commits: []domain.RefRecord{newestCommit}}},
		)
		opts := application.CheckOptions{ManifestPath: writeManifest(t, testManifest)}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		for _, res := range result.Resolutions {
			assert.NotEqual(t, "express", res.Name)
		}
		require.Len(t, result.Resolutions, 2)
	})

	t.Run("should isolate a failed reference lookup", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: testCatalogs()},
			&stubReferenceClient{err: errors.New("github: 502 bad gateway")},
		)
		opts := application.CheckOptions{ManifestPath: writeManifest(t, testManifest)}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		for _, res := range result.Resolutions {
			assert.NotEqual(t, "widgets", res.Name)
		}
		require.Len(t, result.Resolutions, 2)
	})

	t.Run("should abort the run on a transport-level failure", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(
			&stubCatalogClient{
				catalogs: testCatalogs(),
				errs:     map[string]error{"express": errors.New("connection refused")},
			},
			&stubReferenceClient{refs: domain.ReferenceCatalog{Commits: []domain.RefRecord{newestCommit}}},
		)
		opts := application.CheckOptions{ManifestPath: writeManifest(t, testManifest)}

		// when
		_, err := service.Run(context.Background(), opts)

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("should restrict the run to the requested sections", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: testCatalogs()},
			&stubReferenceClient{},
		)
		opts := application.CheckOptions{
			ManifestPath: writeManifest(t, testManifest),
			Sections:     []string{"devDependencies"},
		}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.Total)
		require.Len(t, result.Resolutions, 1)
		assert.Equal(t, "typescript", result.Resolutions[0].Name)
	})

	t.Run("should restrict the run to the filtered names", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: testCatalogs()},
			&stubReferenceClient{},
		)
		opts := application.CheckOptions{
			ManifestPath: writeManifest(t, testManifest),
			Filter:       []string{"express"},
		}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.Total)
		require.Len(t, result.Resolutions, 1)
		assert.Equal(t, "express", result.Resolutions[0].Name)
	})

	t.Run("should match filter entries as substrings", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: testCatalogs()},
			&stubReferenceClient{},
		)
		opts := application.CheckOptions{
			ManifestPath: writeManifest(t, testManifest),
			Filter:       []string{"type"},
		}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.Total)
		require.Len(t, result.Resolutions, 1)
		assert.Equal(t, "typescript", result.Resolutions[0].Name)
	})

	t.Run("should fail when nothing matches the filters", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(&stubCatalogClient{}, &stubReferenceClient{})
		opts := application.CheckOptions{
			ManifestPath: writeManifest(t, testManifest),
			Filter:       []string{"no-such-package"},
		}

		// when
		_, err := service.Run(context.Background(), opts)

		// then
		assert.Error(t, err)
	})

	t.Run("should fail when the manifest is missing", func(t *testing.T) {
		t.Parallel()

		// given
		service := application.NewCheckService(&stubCatalogClient{}, &stubReferenceClient{})
		opts := application.CheckOptions{
			ManifestPath: filepath.Join(t.TempDir(), "package.json"),
		}

		// when
		_, err := service.Run(context.Background(), opts)

		// then
		assert.Error(t, err)
	})

	t.Run("should rewrite the manifest in write mode", func(t *testing.T) {
		t.Parallel()

		// given
		path := writeManifest(t, testManifest)
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: testCatalogs()},
			&stubReferenceClient{refs: domain.ReferenceCatalog{Commits: []domain.RefRecord{newestCommit}}},
		)
		opts := application.CheckOptions{ManifestPath: path, Write: true}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		assert.True(t, result.Written)

		written, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Contains(t, string(written), `"express": "^5.0.0"`)
		assert.Contains(t, string(written), `"widgets": "github:acme/widgets#9db1a9b"`)
		assert.Contains(t, string(written), `"typescript": "5.4.0"`)
		assert.NotContains(t, string(written), "4.18.2")
	})

	t.Run("should honor the policy for named packages only", func(t *testing.T) {
		t.Parallel()

		// given
		catalogs := testCatalogs()
		catalogs["express"] = domain.CatalogEntry{
			Versions: []domain.VersionRecord{
				{Version: "4.18.2", PublishedAt: ts("2023-01-01T00:00:00Z")},
				{Version: "5.0.0-beta.1", PublishedAt: ts("2025-01-01T00:00:00Z")},
			},
			LatestTag: "4.18.2",
		}
		service := application.NewCheckService(
			&stubCatalogClient{catalogs: catalogs},
			&stubReferenceClient{refs: domain.ReferenceCatalog{Commits: []domain.RefRecord{newestCommit}}},
		)
		opts := application.CheckOptions{
			ManifestPath: writeManifest(t, testManifest),
			Policy: domain.Policy{
				Prerelease: domain.SpecificPackages("express"),
			},
		}

		// when
		result, err := service.Run(context.Background(), opts)

		// then
		require.NoError(t, err)
		var express *domain.Resolution
		for i := range result.Resolutions {
			if result.Resolutions[i].Name == "express" {
				express = &result.Resolutions[i]
			}
		}
		require.NotNil(t, express)
		assert.Equal(t, "^5.0.0-beta.1", express.NewSpecifier)
	})
}
