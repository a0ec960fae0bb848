// Package logger provides structured logging for the fork crawler.
//
// It wraps zerolog behind a small interface. Console output is colourised
// and goes to stderr, while an optional log file receives one JSON object
// per line. Every line carries app, version and a per-process run_id.
//
//	err := logger.Initialize(&cfg.Logging)
//
//	logger.GetLogger().InfoWithFields("project completed", map[string]interface{}{
//	    "project": "golang/go",
//	    "pages":   37,
//	})
//
// Tests install a TestLogger with SetLogger and assert on captured messages.
package logger
