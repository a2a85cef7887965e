package github //nolint:testpackage // builds a client against a test server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextver/nextver/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ghc := gh.NewClient(server.Client())
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	ghc.BaseURL = base

	return &Client{gh: ghc}
}

func TestFetchReferences(t *testing.T) {
	t.Parallel()

	t.Run("should return the newest commit for a hash pin", func(t *testing.T) {
		t.Parallel()

		// given
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/acme/widgets/commits", r.URL.Path)
			_, _ = w.Write([]byte(`[{
				"sha": "9db1a9b4f1c8e2d30a9f5b7c6d4e3f2a1b0c9d8e",
				"commit": {"committer": {"date": "2025-04-01T10:00:00Z"}}
			}]`))
		}))
		ref := domain.GitHubReference{Owner: "acme", Repo: "widgets", Ref: "abc1234"}

		// when
		catalog, err := client.FetchReferences(context.Background(), ref, false)

		// then
		require.NoError(t, err)
		require.Len(t, catalog.Commits, 1)
		assert.Equal(t, "9db1a9b4f1c8e2d30a9f5b7c6d4e3f2a1b0c9d8e", catalog.Commits[0].Ref)
		require.NotNil(t, catalog.Commits[0].Date)
		assert.Equal(t, 2025, catalog.Commits[0].Date.Year())
	})

	t.Run("should return tags newest last for a tag pin", func(t *testing.T) {
		t.Parallel()

		// given
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/acme/widgets/tags", r.URL.Path)
			_, _ = w.Write([]byte(`[{"name": "v2.1.0"}, {"name": "v2.0.0"}, {"name": "v1.0.0"}]`))
		}))
		ref := domain.GitHubReference{Owner: "acme", Repo: "widgets", Ref: "v1.0.0"}

		// when
		catalog, err := client.FetchReferences(context.Background(), ref, true)

		// then
		require.NoError(t, err)
		require.Len(t, catalog.Tags, 3)
		assert.Equal(t, "v1.0.0", catalog.Tags[0].Ref)
		assert.Equal(t, "v2.1.0", catalog.Tags[2].Ref)
	})

	t.Run("should surface API failures", func(t *testing.T) {
		t.Parallel()

		// given
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		ref := domain.GitHubReference{Owner: "acme", Repo: "gone", Ref: "abc1234"}

		// when
		_, err := client.FetchReferences(context.Background(), ref, false)

		// then
		assert.Error(t, err)
	})
}

func TestRepoURL(t *testing.T) {
	t.Parallel()

	t.Run("should build the repository page URL", func(t *testing.T) {
		t.Parallel()

		// when
		url := RepoURL(domain.GitHubReference{Owner: "acme", Repo: "widgets", Ref: "v1.0.0"})

		// then
		assert.Equal(t, "https://github.com/acme/widgets", url)
	})
}
