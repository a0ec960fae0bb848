package github

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"forkcrawl/pkg/auth"
	errs "forkcrawl/pkg/errors"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/metrics"
	"forkcrawl/pkg/ratelimit"
	"forkcrawl/pkg/retry"
)

// PageResult is the outcome of fetching one page of forks
type PageResult struct {
	Page    int
	Records []Fork
	// HasNext is true when GitHub advertised another page
	HasNext bool
	// Terminal means the project cannot be crawled (403, 404, 422); Records is empty
	Terminal bool
	// Status is the HTTP status of the final response
	Status int
}

// Fetcher retrieves fork pages, rotating credentials and retrying according
// to a retry.Policy. The page number never advances inside the fetcher.
type Fetcher struct {
	client  *Client
	pool    *auth.Pool
	policy  *retry.Policy
	tracker ratelimit.Tracker
	logger  logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewFetcher wires a fetcher. A nil tracker keeps quota state in memory.
func NewFetcher(client *Client, pool *auth.Pool, policy *retry.Policy, tracker ratelimit.Tracker, log logger.Logger) *Fetcher {
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	if tracker == nil {
		tracker = ratelimit.NewMemoryTracker()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:  client,
		pool:    pool,
		policy:  policy,
		tracker: tracker,
		logger:  log,
		sleep:   retry.Wait,
		now:     time.Now,
	}
}

// SetSleep replaces the wait function used for backoff and reset waits
func (f *Fetcher) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	f.sleep = sleep
}

// SetClock replaces the time source used for reset waits
func (f *Fetcher) SetClock(now func() time.Time) {
	f.now = now
}

// Pool returns the credential pool the fetcher rotates through
func (f *Fetcher) Pool() *auth.Pool {
	return f.pool
}

// Tracker returns the quota tracker updated after every response
func (f *Fetcher) Tracker() ratelimit.Tracker {
	return f.tracker
}

// FetchPage fetches one page of project's forks.
//
// Rate limiting rotates to the next credential; once every credential has
// been tried since the last wait, it sleeps until the reported reset (plus
// grace, capped) and tries again. This loop has no attempt bound and ends
// only on success, a non-rate-limit failure or ctx cancellation.
// Permanent failures return a Terminal result and a nil error. Transient
// failures are retried in place and reported as an error once the attempt
// budget is spent.
func (f *Fetcher) FetchPage(ctx context.Context, project string, page, perPage int) (*PageResult, error) {
	pageURL, err := f.client.ForksURL(project, page, perPage)
	if err != nil {
		return nil, err
	}

	failed := 0
	cycleStart := f.pool.Rotations()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cred := f.pool.Current()
		resp, reqErr := f.client.Get(ctx, pageURL, cred.Token)
		if reqErr != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var (
			kind    errs.ErrorType
			status  int
			resetAt time.Time
			lastErr error
		)

		if reqErr != nil {
			kind = errs.TypeOf(reqErr)
			lastErr = reqErr
		} else {
			status = resp.StatusCode
			state, ok := ratelimit.ParseHeaders(resp.Header)
			resetAt = state.ResetAt
			if ok {
				state.Credential = cred.Name
				state.UpdatedAt = f.now().UTC()
				if err := f.tracker.Update(ctx, state); err != nil {
					f.logger.WarnWithFields("failed to record rate limit state", map[string]interface{}{
						"credential": cred.Name,
						"error":      err.Error(),
					})
				}
			}

			msg := ""
			if status != 200 {
				msg = resp.Message()
			}
			kind = errs.Classify(status, msg, state.Remaining)

			if kind == "" {
				var forks []Fork
				if err := json.Unmarshal(resp.Body, &forks); err != nil {
					kind = errs.ErrorTypeParsing
					lastErr = errs.Wrap(kind, status, "failed to parse fork listing", err)
				} else {
					metrics.PagesFetched.Inc()
					return &PageResult{
						Page:    page,
						Records: forks,
						HasNext: HasNextPage(resp.Header),
						Status:  status,
					}, nil
				}
			} else {
				lastErr = errs.New(kind, status, msg)
			}
		}

		decision := f.policy.Decide(failed+1, kind)
		switch decision.Action {
		case retry.ActionRotate:
			count := f.pool.Rotate()
			metrics.CredentialRotations.Inc()
			logger.LogRateLimit(f.logger, cred.Name, resetAt, count)

			if count >= cycleStart+f.pool.Size() {
				wait := f.policy.ResetWait(resetAt, f.now())
				f.logger.WarnWithFields("all credentials rate limited, waiting for reset", map[string]interface{}{
					"project": project,
					"page":    page,
					"wait":    wait,
				})
				metrics.ObserveRateLimitWait(wait)
				if err := f.sleep(ctx, wait); err != nil {
					return nil, err
				}
				cycleStart = count
			}

		case retry.ActionFailPermanent:
			f.logger.WarnWithFields("project cannot be crawled", map[string]interface{}{
				"project": project,
				"page":    page,
				"status":  status,
				"kind":    string(kind),
				"message": lastErr.Error(),
			})
			return &PageResult{Page: page, Terminal: true, Status: status}, nil

		case retry.ActionFailTransient:
			f.logger.ErrorWithFields("giving up on page", map[string]interface{}{
				"project":  project,
				"page":     page,
				"attempts": failed + 1,
				"error":    lastErr.Error(),
			})
			return nil, fmt.Errorf("max retry attempts (%d) exceeded: %w", f.policy.MaxAttempts, lastErr)

		case retry.ActionRetry:
			failed++
			metrics.RetriesTotal.WithLabelValues(string(kind)).Inc()
			f.logger.WarnWithFields("retrying page", map[string]interface{}{
				"project": project,
				"page":    page,
				"attempt": failed,
				"kind":    string(kind),
				"delay":   decision.Delay,
				"error":   lastErr.Error(),
			})
			if err := f.sleep(ctx, decision.Delay); err != nil {
				return nil, err
			}
		}
	}
}
