package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkcrawl/pkg/auth"
	"forkcrawl/pkg/config"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/ratelimit"
	"forkcrawl/pkg/retry"
)

var testNow = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestPool(t *testing.T, tokens ...string) *auth.Pool {
	t.Helper()
	creds := make([]*auth.Credential, len(tokens))
	for i, tok := range tokens {
		creds[i] = &auth.Credential{Name: fmt.Sprintf("GITHUB_TOKEN_%d", i+1), Token: tok}
	}
	pool, err := auth.NewPool(creds)
	require.NoError(t, err)
	return pool
}

func newTestClient(baseURL string) *Client {
	cfg := config.DefaultConfig().GitHub
	cfg.APIURL = baseURL
	cfg.Timeout = 5 * time.Second
	return NewClient(&cfg, logger.NewNopLogger())
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc, tokens ...string) (*Fetcher, *sleepRecorder, *ratelimit.MemoryTracker) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tracker := ratelimit.NewMemoryTracker()
	f := NewFetcher(newTestClient(server.URL), newTestPool(t, tokens...), retry.DefaultPolicy(), tracker, logger.NewNopLogger())
	rec := &sleepRecorder{}
	f.SetSleep(rec.sleep)
	f.SetClock(func() time.Time { return testNow })
	return f, rec, tracker
}

func forkPage(n int, createdAt string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"id":%d,"full_name":"user%d/demo","owner":{"login":"user%d"},"created_at":%q}`, i+1, i, i, createdAt)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func setQuota(w http.ResponseWriter, remaining int, reset time.Time) {
	w.Header().Set(ratelimit.HeaderLimit, "5000")
	w.Header().Set(ratelimit.HeaderRemaining, fmt.Sprint(remaining))
	w.Header().Set(ratelimit.HeaderReset, fmt.Sprint(reset.Unix()))
}

func TestFetchPage_Pagination(t *testing.T) {
	var seen []string
	var mu sync.Mutex

	f, rec, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RawQuery)
		mu.Unlock()

		assert.Equal(t, "/repos/octo/demo/forks", r.URL.Path)
		assert.Equal(t, "Bearer tok-a", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, "oldest", r.URL.Query().Get("sort"))

		setQuota(w, 4999, testNow.Add(time.Hour))
		if r.URL.Query().Get("page") == "1" {
			w.Header().Set("Link", `<https://api.github.com/repos/octo/demo/forks?page=2>; rel="next", <https://api.github.com/repos/octo/demo/forks?page=2>; rel="last"`)
			fmt.Fprint(w, forkPage(2, "2022-06-01T10:00:00Z"))
			return
		}
		fmt.Fprint(w, forkPage(1, "2022-06-02T10:00:00Z"))
	}, "tok-a")

	ctx := context.Background()

	first, err := f.FetchPage(ctx, "octo/demo", 1, 100)
	require.NoError(t, err)
	assert.True(t, first.HasNext)
	assert.False(t, first.Terminal)
	require.Len(t, first.Records, 2)
	assert.Equal(t, Timestamp("2022-06-01T10:00:00Z"), first.Records[0].CreatedAt)
	assert.Equal(t, "user0", first.Records[0].Owner.Login)

	second, err := f.FetchPage(ctx, "octo/demo", 2, 100)
	require.NoError(t, err)
	assert.False(t, second.HasNext)
	assert.Len(t, second.Records, 1)

	assert.Empty(t, rec.all())
	require.Len(t, seen, 2)
	assert.Contains(t, seen[0], "per_page=100")
}

func TestFetchPage_RotatesOnRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		limited func(w http.ResponseWriter)
	}{
		{
			name: "zero remaining",
			limited: func(w http.ResponseWriter) {
				setQuota(w, 0, testNow.Add(time.Minute))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"API rate limit exceeded for user ID 1."}`)
			},
		},
		{
			name: "403 rate limit message without headers",
			limited: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"You have exceeded a secondary rate limit."}`)
			},
		},
		{
			name: "zero remaining on 200",
			limited: func(w http.ResponseWriter) {
				setQuota(w, 0, testNow.Add(time.Minute))
				fmt.Fprint(w, forkPage(3, "2022-06-01T10:00:00Z"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			f, rec, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				if r.Header.Get("Authorization") == "Bearer tok-a" {
					tt.limited(w)
					return
				}
				setQuota(w, 100, testNow.Add(time.Hour))
				fmt.Fprint(w, forkPage(1, "2022-06-01T10:00:00Z"))
			}, "tok-a", "tok-b")

			res, err := f.FetchPage(context.Background(), "octo/demo", 4, 100)
			require.NoError(t, err)
			assert.Len(t, res.Records, 1)
			assert.Equal(t, int32(2), calls.Load())
			assert.Equal(t, "GITHUB_TOKEN_2", f.Pool().Current().Name)
			assert.Equal(t, 1, f.Pool().Rotations())
			assert.Empty(t, rec.all(), "a single rotation must not wait")
		})
	}
}

func TestFetchPage_LogsToInjectedLogger(t *testing.T) {
	global := logger.NewTestLogger()
	logger.SetLogger(global)
	defer logger.SetLogger(nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-a" {
			setQuota(w, 0, testNow.Add(time.Minute))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
			return
		}
		setQuota(w, 100, testNow.Add(time.Hour))
		fmt.Fprint(w, forkPage(1, "2022-06-01T10:00:00Z"))
	}))
	defer server.Close()

	local := logger.NewTestLogger()
	cfg := config.DefaultConfig().GitHub
	cfg.APIURL = server.URL
	f := NewFetcher(NewClient(&cfg, local), newTestPool(t, "tok-a", "tok-b"), nil, nil, local)
	f.SetSleep((&sleepRecorder{}).sleep)
	f.SetClock(func() time.Time { return testNow })

	_, err := f.FetchPage(context.Background(), "octo/demo", 1, 100)
	require.NoError(t, err)

	assert.True(t, local.HasMessage("Rate limit reached"))
	assert.True(t, local.HasMessage("HTTP request"))
	assert.Empty(t, global.GetMessages(), "nothing should reach the process-wide logger")
}

func TestFetchPage_WaitsAfterFullCycle(t *testing.T) {
	var calls atomic.Int32
	f, rec, tracker := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= 3 {
			setQuota(w, 0, testNow.Add(10*time.Second))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
			return
		}
		setQuota(w, 5000, testNow.Add(time.Hour))
		fmt.Fprint(w, forkPage(2, "2022-06-01T10:00:00Z"))
	}, "tok-a", "tok-b")

	res, err := f.FetchPage(context.Background(), "octo/demo", 7, 100)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 7, res.Page)

	// two rejections exhaust the pool: one wait of reset + 5s grace
	assert.Equal(t, []time.Duration{15 * time.Second}, rec.all())
	assert.Equal(t, int32(4), calls.Load())

	states, err := tracker.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestFetchPage_WaitIsCapped(t *testing.T) {
	var calls atomic.Int32
	f, rec, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			setQuota(w, 0, testNow.Add(2*time.Hour))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		setQuota(w, 5000, testNow.Add(time.Hour))
		fmt.Fprint(w, "[]")
	}, "only")

	res, err := f.FetchPage(context.Background(), "octo/demo", 1, 100)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, []time.Duration{60 * time.Second}, rec.all())
}

func TestFetchPage_TerminalStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"message":"Not Found"}`},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"In order to keep the API fast for everyone, pagination is limited"}`},
		{"forbidden", http.StatusForbidden, `{"message":"Repository access blocked"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			f, rec, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				setQuota(w, 4000, testNow.Add(time.Hour))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}, "tok-a", "tok-b")

			res, err := f.FetchPage(context.Background(), "octo/demo", 3, 100)
			require.NoError(t, err)
			assert.True(t, res.Terminal)
			assert.Empty(t, res.Records)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, int32(1), calls.Load())
			assert.Empty(t, rec.all())
			assert.Equal(t, 0, f.Pool().Rotations())
		})
	}
}

func TestFetchPage_TransientExhaustion(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   []time.Duration
	}{
		{"server error", http.StatusBadGateway, `{"message":"Server Error"}`, []time.Duration{2 * time.Second, 2 * time.Second}},
		{"unexpected status", http.StatusTooManyRequests, `slow down`, []time.Duration{2 * time.Second, 2 * time.Second}},
		{"malformed body", http.StatusOK, `{"not":"a list"`, []time.Duration{2 * time.Second, 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			f, rec, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				setQuota(w, 4000, testNow.Add(time.Hour))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}, "tok-a")

			res, err := f.FetchPage(context.Background(), "octo/demo", 5, 100)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
			assert.Equal(t, int32(3), calls.Load())
			assert.Equal(t, tt.want, rec.all())
		})
	}
}

func TestFetchPage_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := NewFetcher(newTestClient(url), newTestPool(t, "tok"), nil, nil, logger.NewNopLogger())
	rec := &sleepRecorder{}
	f.SetSleep(rec.sleep)

	_, err := f.FetchPage(context.Background(), "octo/demo", 1, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network")
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, rec.all())
}

func TestFetchPage_RecoversAfterRetry(t *testing.T) {
	var calls atomic.Int32
	f, rec, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		setQuota(w, 4000, testNow.Add(time.Hour))
		fmt.Fprint(w, forkPage(5, "2022-06-01T10:00:00Z"))
	}, "tok-a")

	res, err := f.FetchPage(context.Background(), "octo/demo", 2, 100)
	require.NoError(t, err)
	assert.Len(t, res.Records, 5)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.all())
}

func TestFetchPage_Cancellation(t *testing.T) {
	t.Run("before request", func(t *testing.T) {
		var calls atomic.Int32
		f, _, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}, "tok-a")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.FetchPage(ctx, "octo/demo", 1, 100)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("during reset wait", func(t *testing.T) {
		f, _, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			setQuota(w, 0, testNow.Add(30*time.Second))
			w.WriteHeader(http.StatusForbidden)
		}, "tok-a")

		ctx, cancel := context.WithCancel(context.Background())
		f.SetSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		})

		_, err := f.FetchPage(ctx, "octo/demo", 1, 100)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFetchPage_InvalidProject(t *testing.T) {
	f, _, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, "tok-a")

	for _, project := range []string{"", "octo", "octo/", "/demo", "a/b/c"} {
		_, err := f.FetchPage(context.Background(), project, 1, 100)
		assert.Error(t, err, project)
	}
}

func TestFetchPage_RecordsQuota(t *testing.T) {
	f, _, tracker := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ratelimit.HeaderUsed, "12")
		setQuota(w, 4988, testNow.Add(time.Hour))
		fmt.Fprint(w, "[]")
	}, "tok-a")

	_, err := f.FetchPage(context.Background(), "octo/demo", 1, 100)
	require.NoError(t, err)

	state, ok, err := tracker.Get(context.Background(), "GITHUB_TOKEN_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4988, state.Remaining)
	assert.Equal(t, 5000, state.Limit)
	assert.Equal(t, 12, state.Used)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), state.ResetAt.Unix())
	assert.Equal(t, testNow, state.UpdatedAt)
}
