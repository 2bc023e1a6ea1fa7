package monitoring

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTrackerCounts(t *testing.T) {
	pt := NewProgressTracker()

	pt.StartEntity("Schools", 3)
	pt.RecordMigrated("Schools")
	pt.RecordMigrated("Schools")
	pt.RecordFailed("Schools", "school 3: insert rejected")

	pt.StartEntity("Classrooms", 2)
	pt.RecordMigrated("Classrooms")
	pt.RecordSkipped("Classrooms")

	schools := pt.Stats("Schools")
	assert.Equal(t, EntityStats{Entity: "Schools", Found: 3, Migrated: 2, Failed: 1}, schools)

	metrics := pt.GetMetrics()
	require.Len(t, metrics.Entities, 2)
	assert.Equal(t, "Schools", metrics.Entities[0].Entity)
	assert.Equal(t, "Classrooms", metrics.Entities[1].Entity)
	assert.Equal(t, "Classrooms", metrics.CurrentEntity)
	assert.Equal(t, 3, metrics.TotalMigrated)
	assert.Equal(t, 1, metrics.TotalSkipped)
	assert.Equal(t, 1, metrics.TotalFailed)
	assert.Equal(t, 1, metrics.ErrorCount)

	assert.Equal(t, EntityStats{Entity: "Visitors"}, pt.Stats("Visitors"))
}

func TestGetRecentErrors(t *testing.T) {
	pt := NewProgressTracker()
	for i := 0; i < 7; i++ {
		pt.AddError("boom")
	}

	assert.Len(t, pt.GetRecentErrors(5), 5)
	assert.Len(t, pt.GetRecentErrors(10), 7)
}

func TestPrintFinalSummary(t *testing.T) {
	pt := NewProgressTracker()
	pt.StartEntity("Schools", 2)
	pt.RecordMigrated("Schools")
	pt.RecordMigrated("Schools")
	pt.StartEntity("Fee Records", 1)
	pt.RecordFailed("Fee Records", "fee record 9: rejected")

	var buf bytes.Buffer
	pt.PrintFinalSummary(&buf)
	out := buf.String()

	assert.Contains(t, out, "MIGRATION SUMMARY")
	assert.Contains(t, out, "Schools")
	assert.Contains(t, out, "Fee Records")
	assert.Contains(t, out, "Errors Encountered: 1")
	assert.Contains(t, out, "fee record 9: rejected")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + time.Minute + time.Second, "2h1m1s"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, formatDuration(tc.in))
	}
}
