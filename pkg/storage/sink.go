package storage

import (
	"context"
	"errors"
	"fmt"

	"forkcrawl/pkg/config"
	"forkcrawl/pkg/logger"
)

// Sink mirrors completed results somewhere besides the result directory.
// Publishing is best effort; failures never change a project's state.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r *Result) error
	Close() error
}

// OpenSinks opens every sink enabled in cfg. On error, sinks opened so far
// are closed.
func OpenSinks(ctx context.Context, cfg *config.SinksConfig, log logger.Logger) ([]Sink, error) {
	var sinks []Sink

	if cfg.SQLitePath != "" {
		idx, err := NewSQLiteIndex(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, idx)
		log.InfoWithFields("sqlite index enabled", map[string]interface{}{"path": cfg.SQLitePath})
	}

	if cfg.MongoURI != "" {
		ms, err := NewMongoSink(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			CloseSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, ms)
		log.InfoWithFields("mongo sink enabled", map[string]interface{}{
			"database":   cfg.MongoDatabase,
			"collection": cfg.MongoCollection,
		})
	}

	return sinks, nil
}

// CloseSinks closes all sinks and joins their errors
func CloseSinks(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
