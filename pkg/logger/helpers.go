package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// orGlobal returns l, or the process-wide logger when l is nil
func orGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// LogRequest logs a completed GitHub API call on l
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	l = orGlobal(l)
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	default:
		l.WarnWithFields("HTTP request returned unexpected status", fields)
	}
}

// LogRateLimit logs a credential running out of quota
func LogRateLimit(l Logger, credential string, reset time.Time, rotations int) {
	orGlobal(l).WithFields(map[string]interface{}{
		"credential": credential,
		"reset_at":   reset,
		"rotations":  rotations,
		"action":     "rotate",
	}).Warn("Rate limit reached, switching credential")
}

// LogCrawlProgress logs per-page progress for a project
func LogCrawlProgress(l Logger, project string, page, records, inRange int) {
	orGlobal(l).WithFields(map[string]interface{}{
		"project":  project,
		"page":     page,
		"records":  records,
		"in_range": inRange,
	}).Debug("Page processed")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = orGlobal(l).WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	orGlobal(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }

// LogCheckpoint logs a checkpoint write
func LogCheckpoint(l Logger, project string, page int, reason string) {
	orGlobal(l).WithFields(map[string]interface{}{
		"project": project,
		"page":    page,
		"reason":  reason,
	}).Debug("Checkpoint saved")
}
