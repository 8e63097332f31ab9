package upstream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavann19/resilient-microservices/internal/testutil"
	"github.com/pavann19/resilient-microservices/upstream"
)

func testPolicy(attempts int) upstream.RetryPolicy {
	return upstream.RetryPolicy{
		MaxAttempts: attempts,
		BaseWait:    500 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Factor:      2.0,
	}
}

func TestFetchJSON_SuccessFirstAttempt(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On("/data", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyJSON(w, http.StatusOK, map[string]string{"hello": "world"})
	})

	sleeper := &testutil.FakeSleeper{}
	client := upstream.New("test",
		upstream.WithRetryPolicy(testPolicy(3)),
		upstream.WithSleeper(sleeper),
	)

	body, err := client.FetchJSON(context.Background(), upstream.Call{URL: server.BaseURL() + "/data"})

	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "world", doc["hello"])
	assert.Equal(t, 1, server.Calls("/data"))
	assert.Equal(t, 0, sleeper.CallCount())
}

func TestFetchJSON_RetriesServerErrors(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On("/data", func(w http.ResponseWriter, r *http.Request) {
		if server.Calls("/data") <= 2 {
			testutil.ReplyStatus(w, http.StatusInternalServerError)
			return
		}
		testutil.ReplyJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	})

	sleeper := &testutil.FakeSleeper{}
	client := upstream.New("test",
		upstream.WithRetryPolicy(testPolicy(3)),
		upstream.WithSleeper(sleeper),
	)

	_, err := client.FetchJSON(context.Background(), upstream.Call{URL: server.BaseURL() + "/data"})

	require.NoError(t, err)
	assert.Equal(t, 3, server.Calls("/data"))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, sleeper.Calls())
}

func TestFetchJSON_BackoffIsCapped(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On("/data", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStatus(w, http.StatusServiceUnavailable)
	})

	sleeper := &testutil.FakeSleeper{}
	client := upstream.New("test",
		upstream.WithRetryPolicy(testPolicy(5)),
		upstream.WithSleeper(sleeper),
	)

	_, err := client.FetchJSON(context.Background(), upstream.Call{URL: server.BaseURL() + "/data"})

	require.ErrorIs(t, err, upstream.ErrMaxAttempts)
	code, ok := upstream.StatusCode(err)
	require.True(t, ok, "status code should survive the ErrMaxAttempts wrap")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, 5, server.Calls("/data"))
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		2 * time.Second,
	}, sleeper.Calls())
}

func TestFetchJSON_RateLimitFailsFast(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On("/data", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStatus(w, http.StatusTooManyRequests)
	})

	sleeper := &testutil.FakeSleeper{}
	client := upstream.New("test",
		upstream.WithRetryPolicy(testPolicy(3)),
		upstream.WithSleeper(sleeper),
	)

	_, err := client.FetchJSON(context.Background(), upstream.Call{URL: server.BaseURL() + "/data"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, upstream.ErrMaxAttempts, "client errors should not burn the retry budget")
	code, ok := upstream.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, 1, server.Calls("/data"), "first rate-limit observation should end the call")
	assert.Equal(t, 0, sleeper.CallCount())
}

func TestFetchJSON_OtherClientErrorsFailFast(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On("/data", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStatus(w, http.StatusNotFound)
	})

	client := upstream.New("test",
		upstream.WithRetryPolicy(testPolicy(3)),
		upstream.WithSleeper(&testutil.FakeSleeper{}),
	)

	_, err := client.FetchJSON(context.Background(), upstream.Call{URL: server.BaseURL() + "/data"})

	require.Error(t, err)
	code, ok := upstream.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 1, server.Calls("/data"))
}

func TestFetchJSON_TimeoutRetriedAsTransportFailure(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		testutil.ReplyJSON(w, http.StatusOK, map[string]string{})
	})

	sleeper := &testutil.FakeSleeper{}
	client := upstream.New("test",
		upstream.WithRetryPolicy(testPolicy(3)),
		upstream.WithSleeper(sleeper),
	)

	_, err := client.FetchJSON(context.Background(), upstream.Call{
		URL:     server.BaseURL() + "/slow",
		Timeout: 20 * time.Millisecond,
	})

	require.ErrorIs(t, err, upstream.ErrMaxAttempts)
	_, ok := upstream.StatusCode(err)
	assert.False(t, ok, "a timeout carries no HTTP status")
	assert.Equal(t, 3, server.Calls("/slow"))
	assert.Equal(t, 2, sleeper.CallCount())
}

func TestFetchJSON_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	server.On("/data", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyStatus(w, http.StatusBadGateway)
	})

	client := upstream.New("test",
		upstream.WithRetryPolicy(testPolicy(5)),
		upstream.WithSleeper(&testutil.FakeSleeper{}),
		upstream.WithBreakerSettings(upstream.BreakerSettings{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 2,
		}),
	)

	_, err := client.FetchJSON(context.Background(), upstream.Call{URL: server.BaseURL() + "/data"})

	require.ErrorIs(t, err, upstream.ErrCircuitOpen)
	assert.Equal(t, 2, server.Calls("/data"), "open breaker must stop further attempts")

	// And it stays open for subsequent calls without touching the network.
	_, err = client.FetchJSON(context.Background(), upstream.Call{URL: server.BaseURL() + "/data"})
	require.ErrorIs(t, err, upstream.ErrCircuitOpen)
	assert.Equal(t, 2, server.Calls("/data"))
}

func TestFetchJSON_HeadersForwarded(t *testing.T) {
	server := testutil.NewMockUpstream(t)
	var got string
	server.On("/data", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		testutil.ReplyJSON(w, http.StatusOK, map[string]string{})
	})

	client := upstream.New("test", upstream.WithSleeper(&testutil.FakeSleeper{}))

	_, err := client.FetchJSON(context.Background(), upstream.Call{
		URL:    server.BaseURL() + "/data",
		Header: http.Header{"Authorization": []string{"token secret"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "token secret", got)
}

func TestFetchJSON_ContextCancelled(t *testing.T) {
	server := testutil.NewMockUpstream(t)

	client := upstream.New("test", upstream.WithSleeper(&testutil.FakeSleeper{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchJSON(ctx, upstream.Call{URL: server.BaseURL() + "/data"})

	require.ErrorIs(t, err, context.Canceled)
}
