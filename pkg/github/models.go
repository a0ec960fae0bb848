package github

import (
	"encoding/json"
)

// Fork is the subset of a repository object the crawler reads from
// GET /repos/{owner}/{repo}/forks
type Fork struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Owner     Owner     `json:"owner"`
	CreatedAt Timestamp `json:"created_at"`
}

// Owner identifies the account that owns a fork
type Owner struct {
	Login string `json:"login"`
}

// Timestamp keeps the raw created_at text. Values that are not JSON strings
// decode to "" instead of failing the whole page; the aggregator skips them.
type Timestamp string

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = ""
		return nil
	}
	*t = Timestamp(s)
	return nil
}

// Timestamps returns the created_at values of a page in order
func Timestamps(forks []Fork) []string {
	out := make([]string, len(forks))
	for i, f := range forks {
		out[i] = string(f.CreatedAt)
	}
	return out
}

// RateLimitResponse is the body of GET /rate_limit
type RateLimitResponse struct {
	Resources struct {
		Core RateLimitResource `json:"core"`
	} `json:"resources"`
}

// RateLimitResource is one quota bucket
type RateLimitResource struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
	Used      int   `json:"used"`
}

// apiError is GitHub's error body
type apiError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}
