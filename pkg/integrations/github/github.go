// Package github talks to the GitHub releases API. It backs the package-set
// upgrade flow, which looks up the latest upstream package-set release and
// downloads its manifest asset.
package github

import (
	"context"
	"fmt"
	"time"

	"github.com/dfinity/vessel/pkg/cache"
	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/integrations"
)

const (
	// SetOwner and SetRepo locate the upstream package-set repository.
	SetOwner = "dfinity"
	SetRepo  = "vessel-package-set"

	// SetAsset is the release asset holding the package-set catalog.
	SetAsset = "package-set.toml"
)

// Release is one GitHub release, reduced to the fields vessel consumes.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Client provides access to the GitHub releases API.
// It handles HTTP requests with caching, automatic retries, and optional
// authentication.
type Client struct {
	*integrations.Client
	baseURL     string
	downloadURL string
}

// NewClient creates a GitHub API client with optional authentication.
// Pass an empty string for token to use unauthenticated requests (lower
// rate limits).
func NewClient(token string, c cache.Cache) *Client {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "vessel",
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	return &Client{
		Client:      integrations.NewClient(c, headers),
		baseURL:     "https://api.github.com",
		downloadURL: "https://github.com",
	}
}

// Releases lists a repository's releases, newest first.
// If refresh is true, cached data is bypassed.
func (c *Client) Releases(ctx context.Context, owner, repo string, refresh bool) ([]Release, error) {
	key := fmt.Sprintf("github:releases:%s/%s", owner, repo)

	var releases []Release
	err := c.Cached(ctx, key, refresh, &releases, func() error {
		url := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, owner, repo)
		return c.Get(ctx, url, &releases)
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDownloadFailure, err,
			"failed to read GitHub releases for %s/%s", owner, repo)
	}
	return releases, nil
}

// LatestRelease returns the newest release of a repository.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string, refresh bool) (*Release, error) {
	releases, err := c.Releases(ctx, owner, repo, refresh)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "%s/%s has no releases", owner, repo)
	}
	return &releases[0], nil
}

// SetRelease describes one published package-set catalog: where to download
// it and the content hash that pins it.
type SetRelease struct {
	Tag  string
	URL  string
	Hash string
}

// PackageSet resolves a package-set release. An empty tag selects the
// latest upstream release. The returned hash covers the asset's exact
// bytes, so a changed catalog under a reused tag is detectable.
func (c *Client) PackageSet(ctx context.Context, tag string) (*SetRelease, error) {
	if tag == "" {
		latest, err := c.LatestRelease(ctx, SetOwner, SetRepo, false)
		if err != nil {
			return nil, err
		}
		tag = latest.TagName
	}

	url := fmt.Sprintf("%s/%s/%s/releases/download/%s/%s",
		c.downloadURL, SetOwner, SetRepo, tag, SetAsset)
	content, err := c.GetText(ctx, url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDownloadFailure, err,
			"failed to download the package set release %s", tag)
	}

	return &SetRelease{
		Tag:  tag,
		URL:  url,
		Hash: "sha256:" + cache.Hash([]byte(content)),
	}, nil
}
