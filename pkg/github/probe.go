package github

import (
	"context"
	"encoding/json"
	"time"

	"forkcrawl/pkg/auth"
	errs "forkcrawl/pkg/errors"
	"forkcrawl/pkg/retry"
)

// QuotaReport is the probed quota of one credential
type QuotaReport struct {
	Credential string
	Limit      int
	Remaining  int
	Used       int
	ResetAt    time.Time
	Err        error
}

// RateLimit queries GET /rate_limit with token. The endpoint does not count
// against the quota. Network and server errors are retried briefly.
func (c *Client) RateLimit(ctx context.Context, token string) (*RateLimitResponse, error) {
	cfg := &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Second},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      c.logger,
	}

	return retry.DoWithResult(ctx, func(ctx context.Context) (*RateLimitResponse, error) {
		resp, err := c.Get(ctx, c.baseURL+"/rate_limit", token)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != 200 {
			kind := errs.Classify(resp.StatusCode, resp.Message(), -1)
			return nil, errs.New(kind, resp.StatusCode, resp.Message())
		}

		var out RateLimitResponse
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse rate limit", err)
		}
		return &out, nil
	}, cfg)
}

// ProbeAll reports the core quota of every credential in the pool, in
// rotation order. A failing credential is reported with Err set.
func (c *Client) ProbeAll(ctx context.Context, pool *auth.Pool) []QuotaReport {
	creds := pool.Credentials()
	reports := make([]QuotaReport, 0, len(creds))

	for _, cred := range creds {
		report := QuotaReport{Credential: cred.Name}
		rl, err := c.RateLimit(ctx, cred.Token)
		if err != nil {
			report.Err = err
		} else {
			core := rl.Resources.Core
			report.Limit = core.Limit
			report.Remaining = core.Remaining
			report.Used = core.Used
			report.ResetAt = time.Unix(core.Reset, 0).UTC()
		}
		reports = append(reports, report)

		if ctx.Err() != nil {
			break
		}
	}
	return reports
}
