package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavann19/resilient-microservices/upstream"
)

const (
	statsServiceLabel   = "GitHub Stats Service"
	lineageServiceLabel = "GitHub Lineage Service"

	// DefaultStatsQuery selects very popular repositories.
	DefaultStatsQuery = "stars:>50000"
	// DefaultLineageQuery selects recently created popular repositories.
	DefaultLineageQuery = "created:>2024-01-01"
)

// searchRateLimitStatuses: the search API signals throttling with 403 as
// well as 429.
var searchRateLimitStatuses = []int{http.StatusForbidden, http.StatusTooManyRequests}

// SeedStats returns the payload served before the first successful fetch.
func SeedStats() StatsPayload {
	return StatsPayload{Service: statsServiceLabel, Repos: []Repo{}}
}

// SeedLineage returns the payload served before the first successful fetch.
func SeedLineage() LineagePayload {
	return LineagePayload{Service: lineageServiceLabel, Repos: []Repo{}}
}

// NewStats creates the repository-stats source. Token, when present, is
// attached as an Authorization header to loosen the search API's limits.
func NewStats(client *upstream.Client, baseURL, query, token string, opts ...Option[StatsPayload]) *Source[StatsPayload] {
	call := searchCall(baseURL, query, token)

	fetch := func(ctx context.Context) (StatsPayload, error) {
		body, err := client.FetchJSON(ctx, call)
		if err != nil {
			return StatsPayload{}, err
		}
		repos, err := parseRepos(body)
		if err != nil {
			return StatsPayload{}, err
		}
		return StatsPayload{Service: statsServiceLabel, Repos: repos}, nil
	}

	defaults := []Option[StatsPayload]{
		WithCooldown[StatsPayload](30 * time.Second),
		WithRateLimitStatuses[StatsPayload](searchRateLimitStatuses...),
		WithEmpty(func(p StatsPayload) bool { return len(p.Repos) == 0 }),
	}
	return New("stats", fetch, SeedStats(), append(defaults, opts...)...)
}

// StatsFallback returns a fetcher for the static fallback service,
// consumed as a secondary tier by the stats source.
func StatsFallback(client *upstream.Client, baseURL string) Fetcher[StatsPayload] {
	call := upstream.Call{URL: strings.TrimRight(baseURL, "/") + "/default"}

	return func(ctx context.Context) (StatsPayload, error) {
		body, err := client.FetchJSON(ctx, call)
		if err != nil {
			return StatsPayload{}, err
		}
		var payload StatsPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return StatsPayload{}, fmt.Errorf("%w: %v", ErrBadShape, err)
		}
		return payload, nil
	}
}

// NewLineage creates the recent-repositories source. No fallback tier
// exists for it; on failure it degrades straight to the cache.
func NewLineage(client *upstream.Client, baseURL, query, token string, opts ...Option[LineagePayload]) *Source[LineagePayload] {
	call := searchCall(baseURL, query, token)

	fetch := func(ctx context.Context) (LineagePayload, error) {
		body, err := client.FetchJSON(ctx, call)
		if err != nil {
			return LineagePayload{}, err
		}
		repos, err := parseRepos(body)
		if err != nil {
			return LineagePayload{}, err
		}
		return LineagePayload{Service: lineageServiceLabel, Repos: repos}, nil
	}

	defaults := []Option[LineagePayload]{
		WithCooldown[LineagePayload](30 * time.Second),
		WithRateLimitStatuses[LineagePayload](searchRateLimitStatuses...),
		WithEmpty(func(p LineagePayload) bool { return len(p.Repos) == 0 }),
	}
	return New("lineage", fetch, SeedLineage(), append(defaults, opts...)...)
}

func searchCall(baseURL, query, token string) upstream.Call {
	call := upstream.Call{
		URL: strings.TrimRight(baseURL, "/") +
			"/search/repositories?q=" + url.QueryEscape(query) +
			"&sort=stars&order=desc&per_page=5",
	}
	if token != "" {
		call.Header = http.Header{"Authorization": []string{"token " + token}}
	}
	return call
}

// parseRepos validates the search document shape: an "items" sequence of
// objects with full_name, stargazers_count and html_url. A missing or empty
// items list parses to an empty repo list, which the emptiness policy then
// keeps out of the cache.
func parseRepos(body []byte) ([]Repo, error) {
	var doc struct {
		Items []struct {
			FullName        string `json:"full_name"`
			StargazersCount int    `json:"stargazers_count"`
			HTMLURL         string `json:"html_url"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, err)
	}

	repos := make([]Repo, 0, len(doc.Items))
	for _, item := range doc.Items {
		repos = append(repos, Repo{
			Name:  item.FullName,
			Stars: item.StargazersCount,
			URL:   item.HTMLURL,
		})
	}
	return repos, nil
}
