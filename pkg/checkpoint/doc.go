// Package checkpoint provides durable per-project crawl progress.
//
// A checkpoint records, for every fetched page, how many in-window forks
// were created on each day. Day totals are always derived from those page
// contributions. On resume the last recorded page is discarded and fetched
// again, so a page that was only partly applied before an interruption is
// never counted twice.
//
// Checkpoints live in one JSON file per project, named after the project
// with "/" replaced by "_". Files are written atomically. A file that cannot
// be decoded or fails validation is renamed with a .corrupt suffix and the
// project starts from scratch.
package checkpoint
