//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMongo(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://%s", endpoint)
}

func TestMongoSink_Integration(t *testing.T) {
	ctx := context.Background()
	sink, err := NewMongoSink(ctx, setupMongo(t), "forkcrawl", "fork_results")
	require.NoError(t, err)
	defer sink.Close()

	r := sampleResult()
	require.NoError(t, sink.Publish(ctx, r))

	r.TotalForksInRange = 1
	r.DailyForks = map[string]int{"2022-04-01": 1}
	require.NoError(t, sink.Publish(ctx, r))

	got, err := sink.Get(ctx, "octo/demo")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalForksInRange)
	assert.Equal(t, 137, got.TotalForksAllTime)
	assert.Equal(t, map[string]int{"2022-04-01": 1}, got.DailyForks)

	n, err := sink.collection.CountDocuments(ctx, map[string]string{"project": "octo/demo"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
