// Package github talks to the GitHub REST API on behalf of the crawler.
//
// Client sends authenticated requests and reads whole responses. Fetcher
// wraps it with the crawl's failure handling: it records quota headers in a
// ratelimit.Tracker, rotates through an auth.Pool when a credential is rate
// limited, waits for the reset once every credential has been tried, and
// retries network and server failures according to a retry.Policy.
//
// Basic usage:
//
//	client := github.NewClient(&cfg.GitHub, log)
//	fetcher := github.NewFetcher(client, pool, retry.NewPolicy(&cfg.Retry), tracker, log)
//
//	res, err := fetcher.FetchPage(ctx, "octo/demo", 1, 100)
//	if err != nil {
//		// transient failure or cancellation
//	}
//	if res.Terminal {
//		// 403, 404 or 422: the project cannot be crawled
//	}
package github
