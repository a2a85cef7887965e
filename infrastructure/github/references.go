package github

import (
	"context"
	"fmt"
	"os"

	gh "github.com/google/go-github/v66/github"

	"github.com/nextver/nextver/domain"
)

const perPage = 100

// Client lists commits and tags for GitHub-pinned dependencies.
type Client struct {
	gh *gh.Client
}

// NewClient creates a GitHub client. An empty token yields unauthenticated
// access, subject to the public rate limits.
func NewClient(token string) *Client {
	client := gh.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Client{gh: client}
}

// TokenFromEnv resolves a GitHub token from the conventional env vars.
func TokenFromEnv() string {
	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("GH_TOKEN")
}

// FetchReferences returns the reference catalog for a repository: the single
// newest commit and, when wantTags is set, the tag list ordered newest-last.
func (c *Client) FetchReferences(
	ctx context.Context,
	ref domain.GitHubReference,
	wantTags bool,
) (*domain.ReferenceCatalog, error) {
	catalog := &domain.ReferenceCatalog{}

	if wantTags {
		tags, err := c.listTags(ctx, ref)
		if err != nil {
			return nil, err
		}
		catalog.Tags = tags
		return catalog, nil
	}

	commit, err := c.newestCommit(ctx, ref)
	if err != nil {
		return nil, err
	}
	if commit != nil {
		catalog.Commits = []domain.RefRecord{*commit}
	}
	return catalog, nil
}

func (c *Client) newestCommit(ctx context.Context, ref domain.GitHubReference) (*domain.RefRecord, error) {
	opts := &gh.CommitsListOptions{ListOptions: gh.ListOptions{PerPage: 1}}
	commits, _, err := c.gh.Repositories.ListCommits(ctx, ref.Owner, ref.Repo, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits for %s/%s: %w", ref.Owner, ref.Repo, err)
	}
	if len(commits) == 0 {
		return nil, nil
	}

	record := &domain.RefRecord{Ref: commits[0].GetSHA()}
	if date := commits[0].GetCommit().GetCommitter().GetDate(); !date.IsZero() {
		t := date.Time
		record.Date = &t
	}
	return record, nil
}

func (c *Client) listTags(ctx context.Context, ref domain.GitHubReference) ([]domain.RefRecord, error) {
	var all []domain.RefRecord
	opts := &gh.ListOptions{PerPage: perPage}

	for {
		tags, resp, err := c.gh.Repositories.ListTags(ctx, ref.Owner, ref.Repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags for %s/%s: %w", ref.Owner, ref.Repo, err)
		}
		for _, tag := range tags {
			all = append(all, domain.RefRecord{Ref: tag.GetName()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	// The API lists tags newest first; the engine expects newest last.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// RepoURL returns the human-facing repository page.
func RepoURL(ref domain.GitHubReference) string {
	return "https://github.com/" + ref.Owner + "/" + ref.Repo
}
