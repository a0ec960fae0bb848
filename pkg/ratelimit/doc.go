// Package ratelimit paces page requests and tracks GitHub quota per credential.
//
// Interval provides the fixed courtesy delay between consecutive page
// requests. Tracker records the X-RateLimit-* headers of every response,
// either in memory or in Redis so several crawler processes sharing a token
// set see the same picture, and mirrors the remaining count to the
// forkcrawl_rate_limit_remaining gauge.
package ratelimit
