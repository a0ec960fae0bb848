// Package retry decides how the crawler reacts to failed GitHub requests.
//
// Policy maps a classified failure to an Action: rate limiting rotates to
// the next credential without touching the attempt budget, 403/404/422 end
// the project, and everything else is retried after a per-kind delay until
// MaxAttempts is spent.
//
//	policy := retry.NewPolicy(&cfg.Retry)
//	switch d := policy.Decide(attempt, errs.TypeOf(err)); d.Action {
//	case retry.ActionRetry:
//		retry.Wait(ctx, d.Delay)
//	case retry.ActionRotate:
//		pool.Rotate()
//	}
//
// Do and DoWithResult wrap simpler calls, such as the rate limit probe and
// the MongoDB sink, that only need a bounded retry loop.
package retry
