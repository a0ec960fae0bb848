// Package storage persists completed crawl results.
//
// Manager writes one JSON file per project into the result directory using
// a temporary file, fsync and rename, so readers never see a partial result.
// Only completed projects have a result file.
//
// Sinks mirror results elsewhere after they are written:
//   - SQLiteIndex keeps projects and daily counts in a local database
//   - MongoSink upserts one document per project
//
// Sink failures are logged by the caller and never affect crawl state.
//
// Usage:
//
//	manager, err := storage.NewManager("data/fork")
//	if err != nil {
//		return err
//	}
//	if err := manager.Save(storage.NewResult(cp, window, time.Now())); err != nil {
//		return err
//	}
package storage
