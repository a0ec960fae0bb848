package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// GitHub rate limit response headers
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderUsed      = "X-RateLimit-Used"
	HeaderReset     = "X-RateLimit-Reset"
)

// State is the quota picture of one credential as of its last response
type State struct {
	Credential string    `json:"credential"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	Used       int       `json:"used"`
	ResetAt    time.Time `json:"reset_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Exhausted reports whether the credential has no requests left
func (s State) Exhausted() bool {
	return s.Remaining == 0
}

// ParseHeaders extracts rate limit state from a response. Remaining is -1
// when the header is absent or malformed, so it never reads as exhausted.
// ok is false when no rate limit headers were present at all.
func ParseHeaders(h http.Header) (state State, ok bool) {
	state.Remaining = -1

	if v := h.Get(HeaderRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state.Remaining = n
			ok = true
		}
	}
	if v := h.Get(HeaderLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state.Limit = n
			ok = true
		}
	}
	if v := h.Get(HeaderUsed); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state.Used = n
		}
	}
	if v := h.Get(HeaderReset); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.ResetAt = time.Unix(n, 0).UTC()
			ok = true
		}
	}
	return state, ok
}
