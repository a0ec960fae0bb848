package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkcrawl/pkg/aggregate"
	"forkcrawl/pkg/checkpoint"
)

func sampleResult() *Result {
	cp := checkpoint.New("octo/demo")
	cp.Record(1, aggregate.PageCounts{Days: map[string]int{"2022-05-02": 60, "2022-03-01": 40}, Total: 100})
	cp.Record(2, aggregate.PageCounts{Days: map[string]int{"2023-03-31": 30}, Total: 37})
	return NewResult(cp, aggregate.DefaultWindow(), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestNewResult(t *testing.T) {
	r := sampleResult()

	assert.Equal(t, "octo/demo", r.Project)
	assert.Equal(t, 130, r.TotalForksInRange)
	assert.Equal(t, 137, r.TotalForksAllTime)
	assert.Equal(t, "2022-03-01", r.StartDate)
	assert.Equal(t, "2023-03-31", r.EndDate)
}

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	require.NoError(t, err)
	assert.Equal(t, 0, manager.Count())
	assert.False(t, manager.Exists("octo/demo"))

	r := sampleResult()
	require.NoError(t, manager.Save(r))

	expectedPath := filepath.Join(tempDir, "octo_demo.json")
	assert.FileExists(t, expectedPath)
	assert.NoFileExists(t, expectedPath+".tmp")
	assert.True(t, manager.Exists("octo/demo"))
	assert.Equal(t, 1, manager.Count())

	loaded, err := manager.Load("octo/demo")
	require.NoError(t, err)
	assert.Equal(t, r.DailyForks, loaded.DailyForks)
	assert.True(t, r.CrawledAt.Equal(loaded.CrawledAt))

	// a second manager finds the existing file
	again, err := NewManager(tempDir)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Count())
	assert.Equal(t, tempDir, again.GetOutputDir())
}

func TestResultFormat(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, manager.Save(sampleResult()))

	data, err := os.ReadFile(manager.Path("octo/demo"))
	require.NoError(t, err)

	assert.Equal(t, []string{"2022-03-01", "2022-05-02", "2023-03-31"}, dailyForkKeys(t, data))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"project", "total_forks_in_range", "total_forks_all_time", "start_date", "end_date", "crawled_at", "daily_forks"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "2024-01-02T03:04:05Z", raw["crawled_at"])
}

func TestManagerList(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	for _, p := range []string{"zeta/z", "alpha/a"} {
		r := sampleResult()
		r.Project = p
		require.NoError(t, manager.Save(r))
	}
	require.NoError(t, os.WriteFile(filepath.Join(manager.GetOutputDir(), "broken.json"), []byte("{"), 0644))

	list, err := manager.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha/a", list[0].Project)
	assert.Equal(t, "zeta/z", list[1].Project)

	_, err = manager.Load("missing/project")
	assert.Error(t, err)
}

// dailyForkKeys returns the keys of the daily_forks object in file order
func dailyForkKeys(t *testing.T, data []byte) []string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		require.NoError(t, err, "daily_forks not found")
		if tok == "daily_forks" {
			break
		}
	}

	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)

	var keys []string
	for dec.More() {
		key, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, key.(string))
		var count int
		require.NoError(t, dec.Decode(&count))
	}
	return keys
}
