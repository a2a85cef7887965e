package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	logger "github.com/sirupsen/logrus"

	"github.com/nextver/nextver/domain"
)

// DefaultURL is the public npm registry.
const DefaultURL = "https://registry.npmjs.org"

const (
	requestTimeout = 30 * time.Second
	retryMax       = 3
)

// StatusError reports a non-success registry response for one package. The
// caller drops that single dependency instead of aborting the run.
type StatusError struct {
	Package  string
	Registry string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry %s returned %d for %q", e.Registry, e.Code, e.Package)
}

// Client fetches package catalogs from npm-compatible registries, honoring
// scoped registry and auth settings from .npmrc.
type Client struct {
	http       *retryablehttp.Client
	defaultURL string
	npmrc      *Npmrc
}

// NewClient creates a registry client. defaultURL falls back to the public
// registry when empty; npmrc may be nil when no rc files are in play.
func NewClient(defaultURL string, npmrc *Npmrc) *Client {
	if defaultURL == "" {
		defaultURL = DefaultURL
	}
	if npmrc == nil {
		npmrc = &Npmrc{}
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = requestTimeout
	rc.Logger = nil

	return &Client{
		http:       rc,
		defaultURL: strings.TrimSuffix(defaultURL, "/"),
		npmrc:      npmrc,
	}
}

// FetchCatalog retrieves the version catalog for a package. A failure against
// a non-default scoped registry is retried once against the default registry
// before the error is surfaced.
func (c *Client) FetchCatalog(ctx context.Context, name string) (*domain.CatalogEntry, error) {
	regURL := c.npmrc.RegistryFor(name, c.defaultURL)

	entry, err := c.fetch(ctx, regURL, name)
	if err != nil && regURL != c.defaultURL {
		logger.Debugf("[registry] %s failed on %s, retrying default registry: %v", name, regURL, err)
		entry, err = c.fetch(ctx, c.defaultURL, name)
	}
	return entry, err
}

// packument is the subset of the npm registry document the engine needs.
type packument struct {
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]json.RawMessage `json:"versions"`
	Time     map[string]string          `json:"time"`
}

func (c *Client) fetch(ctx context.Context, regURL, name string) (*domain.CatalogEntry, error) {
	url := regURL + "/" + escapeName(name)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %q: %w", name, err)
	}
	if token := c.npmrc.TokenFor(regURL); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q from %s: %w", name, regURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Package: name, Registry: regURL, Code: resp.StatusCode}
	}

	var doc packument
	if decodeErr := json.NewDecoder(resp.Body).Decode(&doc); decodeErr != nil {
		return nil, fmt.Errorf("failed to parse registry response for %q: %w", name, decodeErr)
	}

	return toCatalog(doc), nil
}

// toCatalog converts a packument into the engine's catalog shape. Versions
// are sorted lexically for deterministic scan order; publish timestamps that
// fail to parse are treated as absent.
func toCatalog(doc packument) *domain.CatalogEntry {
	entry := &domain.CatalogEntry{LatestTag: doc.DistTags["latest"]}

	versions := make([]string, 0, len(doc.Versions))
	for v := range doc.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	for _, v := range versions {
		rec := domain.VersionRecord{Version: v}
		if raw, ok := doc.Time[v]; ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				rec.PublishedAt = &t
			}
		}
		entry.Versions = append(entry.Versions, rec)
	}

	return entry
}

// escapeName encodes the slash of a scoped package name for use in a registry
// URL path.
func escapeName(name string) string {
	if strings.HasPrefix(name, "@") {
		return strings.Replace(name, "/", "%2F", 1)
	}
	return name
}

// InfoURL returns the human-facing package page for a dependency.
func InfoURL(name string) string {
	return "https://www.npmjs.com/package/" + name
}
