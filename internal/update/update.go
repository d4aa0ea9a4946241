// Package update checks GitHub for a newer apibean release.
package update

import (
	"context"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/apibean/apibean-cli/internal/cache"
	"github.com/apibean/apibean-cli/internal/curli"
	"github.com/apibean/apibean-cli/internal/header"
)

const (
	DefaultReleasesURL = "https://api.github.com/repos/apibean/apibean-cli/releases/latest"
	CheckTimeout       = 5 * time.Second
	// CacheTTL is how long a fetched release is reused.
	CacheTTL = 24 * time.Hour
)

// Release is the subset of the GitHub release payload we read.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result describes the outcome of a successful check.
type Result struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateURL       string
	UpdateAvailable bool
}

// Checker queries a releases endpoint through a curli client, so the
// request carries a request id and failures are classified like any other.
type Checker struct {
	URL    string
	Client *curli.Client
	// Cache, when set, holds the last fetched release.
	Cache *cache.Store
}

// NewChecker returns a checker for the default releases URL. A nil doer
// uses a plain *http.Client.
func NewChecker(doer curli.Doer) *Checker {
	return &Checker{
		URL:    DefaultReleasesURL,
		Client: curli.New(doer, nil, nil, nil),
	}
}

// Check compares current with the latest release. It returns nil when the
// version is a development build or the check fails for any reason; a
// failed check must never block the CLI.
func (c *Checker) Check(ctx context.Context, current string) *Result {
	if current == "dev" || current == "" {
		return nil
	}

	var release Release
	if c.Cache == nil || !c.Cache.Get(&release) {
		fetched, ok := c.fetch(ctx)
		if !ok {
			return nil
		}
		release = fetched
		if c.Cache != nil {
			c.Cache.Put(release)
		}
	}

	result := &Result{
		CurrentVersion: current,
		LatestVersion:  strings.TrimPrefix(release.TagName, "v"),
		UpdateURL:      release.HTMLURL,
	}
	cur, latest := canonical(current), canonical(release.TagName)
	if semver.IsValid(cur) && semver.IsValid(latest) {
		result.UpdateAvailable = semver.Compare(latest, cur) > 0
	}
	return result
}

func (c *Checker) fetch(ctx context.Context) (Release, bool) {
	var release Release
	res, err := c.Client.Get(ctx, c.URL, curli.Options{
		Headers: header.New("Accept", "application/vnd.github.v3+json"),
		Timeout: CheckTimeout,
	})
	if err != nil || !res.OK() {
		return release, false
	}
	resp := res.Response
	if resp.StatusCode != 200 {
		_ = resp.Close()
		return release, false
	}
	if err := resp.JSON(&release); err != nil {
		return release, false
	}
	return release, true
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
