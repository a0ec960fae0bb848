package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasNextPage(t *testing.T) {
	tests := []struct {
		name string
		link string
		want bool
	}{
		{"no header", "", false},
		{"next and last", `<https://api.github.com/x?page=3>; rel="next", <https://api.github.com/x?page=9>; rel="last"`, true},
		{"last page", `<https://api.github.com/x?page=1>; rel="first", <https://api.github.com/x?page=8>; rel="prev"`, false},
		{"next only", `<https://api.github.com/x?page=2>; rel="next"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.link != "" {
				h.Set("Link", tt.link)
			}
			assert.Equal(t, tt.want, HasNextPage(h))
		})
	}
}

func TestForksURL(t *testing.T) {
	c := newTestClient("https://api.github.com/")

	got, err := c.ForksURL("octo/demo", 3, 100)
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/repos/octo/demo/forks?page=3&per_page=100&sort=oldest", got)

	_, err = c.ForksURL("octo", 1, 100)
	assert.Error(t, err)
}

func TestTimestampTolerantDecode(t *testing.T) {
	var forks []Fork
	body := `[{"id":1,"created_at":"2022-05-01T00:00:00Z"},{"id":2,"created_at":null},{"id":3,"created_at":17},{"id":4}]`
	require.NoError(t, json.Unmarshal([]byte(body), &forks))

	assert.Equal(t, []string{"2022-05-01T00:00:00Z", "", "", ""}, Timestamps(forks))
}

func TestResponseMessage(t *testing.T) {
	r := &Response{Body: []byte(`{"message":"Not Found","documentation_url":"https://docs.github.com"}`)}
	assert.Equal(t, "Not Found", r.Message())

	r = &Response{Body: []byte("  upstream timeout \n")}
	assert.Equal(t, "upstream timeout", r.Message())
}

func TestRateLimitProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			fmt.Fprint(w, `{"resources":{"core":{"limit":5000,"remaining":4321,"reset":1700000000,"used":679}}}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	rl, err := c.RateLimit(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, 4321, rl.Resources.Core.Remaining)
	assert.Equal(t, int64(1700000000), rl.Resources.Core.Reset)

	reports := c.ProbeAll(context.Background(), newTestPool(t, "good", "bad"))
	require.Len(t, reports, 2)
	assert.Equal(t, "GITHUB_TOKEN_1", reports[0].Credential)
	assert.NoError(t, reports[0].Err)
	assert.Equal(t, 5000, reports[0].Limit)
	assert.Equal(t, int64(1700000000), reports[0].ResetAt.Unix())
	assert.Error(t, reports[1].Err)
}
