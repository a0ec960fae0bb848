package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name          string
		headers       map[string]string
		wantOK        bool
		wantRemaining int
		wantLimit     int
		wantReset     time.Time
	}{
		{
			name: "full set",
			headers: map[string]string{
				HeaderLimit:     "5000",
				HeaderRemaining: "4999",
				HeaderUsed:      "1",
				HeaderReset:     "1700000000",
			},
			wantOK:        true,
			wantRemaining: 4999,
			wantLimit:     5000,
			wantReset:     time.Unix(1700000000, 0).UTC(),
		},
		{
			name:          "exhausted",
			headers:       map[string]string{HeaderRemaining: "0", HeaderReset: "1700000000"},
			wantOK:        true,
			wantRemaining: 0,
			wantReset:     time.Unix(1700000000, 0).UTC(),
		},
		{
			name:          "missing headers",
			headers:       map[string]string{},
			wantOK:        false,
			wantRemaining: -1,
		},
		{
			name:          "malformed remaining never reads as exhausted",
			headers:       map[string]string{HeaderRemaining: "lots"},
			wantOK:        false,
			wantRemaining: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			state, ok := ParseHeaders(h)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRemaining, state.Remaining)
			assert.Equal(t, tt.wantLimit, state.Limit)
			assert.True(t, tt.wantReset.Equal(state.ResetAt))
			assert.Equal(t, tt.wantRemaining == 0, state.Exhausted())
		})
	}
}
