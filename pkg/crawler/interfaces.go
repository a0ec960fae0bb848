package crawler

import (
	"context"

	"forkcrawl/pkg/checkpoint"
	"forkcrawl/pkg/github"
	"forkcrawl/pkg/storage"
)

// PageFetcher defines the page retrieval the driver depends on
type PageFetcher interface {
	FetchPage(ctx context.Context, project string, page, perPage int) (*github.PageResult, error)
}

// CheckpointStore defines durable progress storage
type CheckpointStore interface {
	Load(project string) *checkpoint.Checkpoint
	Save(cp *checkpoint.Checkpoint) error
	Delete(project string) error
}

// ResultWriter stores the final result of a completed project
type ResultWriter interface {
	Save(r *storage.Result) error
}

// Observer receives progress events. Implementations must not block.
type Observer interface {
	ProjectStarted(project string, index, total, startPage int)
	PageFetched(ev PageEvent)
	ProjectFinished(out Outcome)
}
