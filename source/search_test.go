package source_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavann19/resilient-microservices/internal/testutil"
	"github.com/pavann19/resilient-microservices/source"
	"github.com/pavann19/resilient-microservices/upstream"
)

const searchPath = "/search/repositories"

func newSearchClient(name string) *upstream.Client {
	return upstream.New(name,
		upstream.WithSleeper(&testutil.FakeSleeper{}),
		upstream.WithRetryPolicy(upstream.DefaultRetryPolicy()),
	)
}

func TestStats_QueryAndTokenForwarded(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On(searchPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stars:>50000", r.URL.Query().Get("q"))
		assert.Equal(t, "stars", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		assert.Equal(t, "token hunter2", r.Header.Get("Authorization"))
		testutil.ReplySearch(w, testutil.SearchItem{FullName: "golang/go", Stars: 120000, URL: "https://example.com/golang/go"})
	})

	src := source.NewStats(newSearchClient("stats"), server.BaseURL(), source.DefaultStatsQuery, "hunter2")

	res := src.Resolve(context.Background())

	require.Equal(t, source.StatusUp, res.Status)
	payload, ok := res.Payload.(source.StatsPayload)
	require.True(t, ok)
	require.Len(t, payload.Repos, 1)
	assert.Equal(t, source.Repo{Name: "golang/go", Stars: 120000, URL: "https://example.com/golang/go"}, payload.Repos[0])
	assert.Nil(t, payload.USDRate)
}

func TestStats_NoTokenMeansNoAuthorizationHeader(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On(searchPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		testutil.ReplySearch(w)
	})

	src := source.NewStats(newSearchClient("stats"), server.BaseURL(), source.DefaultStatsQuery, "")

	src.Resolve(context.Background())
	assert.Equal(t, 1, server.Calls(searchPath))
}

func TestStats_RateLimitFallsBackAndCoolsDown(t *testing.T) {
	primary := testutil.NewMockUpstream(t)
	primary.On(searchPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStatus(w, http.StatusTooManyRequests)
	})

	fallback := testutil.NewMockUpstream(t)
	fallback.On("/default", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyJSON(w, http.StatusOK, map[string]any{
			"service": "fallback",
			"repos": []map[string]any{
				{"name": "backup/repo", "stars": 42, "url": "https://example.com/backup/repo"},
			},
		})
	})

	clock := testutil.NewFakeClock(time.Unix(1_700_000_000, 0))
	src := source.NewStats(newSearchClient("stats"), primary.BaseURL(), source.DefaultStatsQuery, "",
		source.WithClock[source.StatsPayload](clock),
		source.WithFallback(source.StatsFallback(newSearchClient("fallback"), fallback.BaseURL())),
	)

	// Scenario: primary rate-limited once, fallback answers.
	res := src.Resolve(context.Background())

	require.Equal(t, source.StatusFallback, res.Status)
	payload := res.Payload.(source.StatsPayload)
	require.Len(t, payload.Repos, 1)
	assert.Equal(t, "backup/repo", payload.Repos[0].Name)
	assert.Equal(t, 1, primary.Calls(searchPath), "one rate-limit observation is enough")
	assert.Equal(t, 1, fallback.Calls("/default"))

	// 10s later, still inside the 30s cooldown: no network call at all,
	// and the cached payload is the fallback's repos, not the seed.
	clock.Advance(10 * time.Second)
	res = src.Resolve(context.Background())

	assert.Equal(t, source.StatusDown, res.Status)
	payload = res.Payload.(source.StatsPayload)
	require.Len(t, payload.Repos, 1)
	assert.Equal(t, "backup/repo", payload.Repos[0].Name)
	assert.Equal(t, 1, primary.Calls(searchPath))
	assert.Equal(t, 1, fallback.Calls("/default"))

	// Past the cooldown the primary is consulted again.
	clock.Advance(20 * time.Second)
	src.Resolve(context.Background())
	assert.Equal(t, 2, primary.Calls(searchPath))
}

func TestStats_ForbiddenAlsoArmsCooldown(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On(searchPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStatus(w, http.StatusForbidden)
	})

	clock := testutil.NewFakeClock(time.Unix(1_700_000_000, 0))
	src := source.NewStats(newSearchClient("stats"), server.BaseURL(), source.DefaultStatsQuery, "",
		source.WithClock[source.StatsPayload](clock),
	)

	src.Resolve(context.Background())
	clock.Advance(10 * time.Second)
	src.Resolve(context.Background())

	assert.Equal(t, 1, server.Calls(searchPath))
}

func TestStats_EmptyFallbackPayloadKeepsCache(t *testing.T) {
	primary := testutil.NewMockUpstream(t)
	good := true
	primary.On(searchPath, func(w http.ResponseWriter, r *http.Request) {
		if good {
			testutil.ReplySearch(w, testutil.SearchItem{FullName: "golang/go", Stars: 120000, URL: "https://example.com/golang/go"})
			return
		}
		testutil.ReplyStatus(w, http.StatusInternalServerError)
	})

	fallback := testutil.NewMockUpstream(t)
	fallback.On("/default", func(w http.ResponseWriter, r *http.Request) {
		// The static fallback service carries no repos.
		testutil.ReplyJSON(w, http.StatusOK, map[string]string{
			"service": "fallback",
			"message": "using fallback service",
		})
	})

	src := source.NewStats(newSearchClient("stats"), primary.BaseURL(), source.DefaultStatsQuery, "",
		source.WithFallback(source.StatsFallback(newSearchClient("fallback"), fallback.BaseURL())),
	)

	src.Resolve(context.Background())
	good = false

	res := src.Resolve(context.Background())

	assert.Equal(t, source.StatusFallback, res.Status)
	payload := res.Payload.(source.StatsPayload)
	require.Len(t, payload.Repos, 1)
	assert.Equal(t, "golang/go", payload.Repos[0].Name,
		"a repo-less fallback answer must not erase real repos")
}

func TestLineage_ParsesReposWithoutFallback(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On(searchPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "created:>2024-01-01", r.URL.Query().Get("q"))
		testutil.ReplySearch(w,
			testutil.SearchItem{FullName: "new/hotness", Stars: 9000, URL: "https://example.com/new/hotness"},
			testutil.SearchItem{FullName: "new/other", Stars: 8000, URL: "https://example.com/new/other"},
		)
	})

	src := source.NewLineage(newSearchClient("lineage"), server.BaseURL(), source.DefaultLineageQuery, "")

	res := src.Resolve(context.Background())

	require.Equal(t, source.StatusUp, res.Status)
	payload, ok := res.Payload.(source.LineagePayload)
	require.True(t, ok)
	require.Len(t, payload.Repos, 2)
	assert.Equal(t, "new/hotness", payload.Repos[0].Name)
}

func TestLineage_ServerErrorServesSeed(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On(searchPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStatus(w, http.StatusInternalServerError)
	})

	src := source.NewLineage(newSearchClient("lineage"), server.BaseURL(), source.DefaultLineageQuery, "")

	res := src.Resolve(context.Background())

	assert.Equal(t, source.StatusDown, res.Status)
	payload := res.Payload.(source.LineagePayload)
	assert.Empty(t, payload.Repos)
	assert.Equal(t, 3, server.Calls(searchPath), "server errors are retried before degrading")
}
