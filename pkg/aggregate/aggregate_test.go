package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowBoundsAreInclusive(t *testing.T) {
	w := DefaultWindow()

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"start", w.Start, true},
		{"end", w.End, true},
		{"just before start", w.Start.Add(-time.Microsecond), false},
		{"just after end", w.End.Add(time.Microsecond), false},
		{"inside", time.Date(2022, 9, 1, 12, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.t))
		})
	}
}

func TestFold(t *testing.T) {
	w := DefaultWindow()

	got := Fold([]string{
		"2022-03-01T00:00:00Z",
		"2022-03-01T23:59:59Z",
		"2023-03-31T23:59:59Z",
		"2023-04-01T00:00:00Z",
		"2021-12-31T10:00:00Z",
		"2022-06-15T23:30:00-02:00",
		"",
		"yesterday",
	}, w)

	assert.Equal(t, map[string]int{
		"2022-03-01": 2,
		"2023-03-31": 1,
		"2022-06-16": 1,
	}, got.Days)
	assert.Equal(t, 6, got.Total)
	assert.Equal(t, 2, got.Skipped)
	assert.Equal(t, 4, got.InRange())
	assert.GreaterOrEqual(t, got.Total, got.InRange())
}

func TestFoldFractionalSecondsAtBounds(t *testing.T) {
	w := DefaultWindow()

	got := Fold([]string{
		"2022-02-28T23:59:59.999999Z",
		"2023-03-31T23:59:59.000001Z",
	}, w)

	assert.Empty(t, got.Days)
	assert.Equal(t, 2, got.Total)
}

func TestFoldEmptyPage(t *testing.T) {
	got := Fold(nil, DefaultWindow())
	assert.Equal(t, 0, got.Total)
	assert.NotNil(t, got.Days)
}

func TestMergeAndSortedDays(t *testing.T) {
	dst := map[string]int{"2022-05-02": 1}
	Merge(dst, map[string]int{"2022-05-02": 2, "2022-05-01": 4})

	assert.Equal(t, map[string]int{"2022-05-01": 4, "2022-05-02": 3}, dst)
	assert.Equal(t, []string{"2022-05-01", "2022-05-02"}, SortedDays(dst))
}
