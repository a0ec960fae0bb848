// Package crawler drives the per-project crawl.
//
// For each project the Crawler loads its checkpoint, discards the last
// recorded page, and fetches pages oldest first from that page on. Each
// page is folded into per-day counts and recorded in the checkpoint, which
// is saved every CheckpointInterval pages and whenever the project stops.
//
// A project ends in one of three states:
//   - Completed: the listing was exhausted, the result file was written and
//     the checkpoint marked complete. Later runs skip it without requests.
//   - Deferred: a permanent HTTP failure, exhausted retries or a storage
//     error. Progress is kept and the run moves on to the next project.
//   - Interrupted: the context was cancelled. Progress is flushed and the
//     cancellation is returned so the run stops.
//
// Usage:
//
//	c := crawler.New(cfg, fetcher, checkpoints, results, log)
//	c.SetPool(pool)
//	summary, err := c.Run(ctx, list.Projects)
package crawler
