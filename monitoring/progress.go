package monitoring

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
)

// counters for one entity type
type EntityStats struct {
	Entity   string `json:"entity" bson:"entity"`
	Found    int    `json:"found" bson:"found"`
	Migrated int    `json:"migrated" bson:"migrated"`
	Skipped  int    `json:"skipped" bson:"skipped"`
	Failed   int    `json:"failed" bson:"failed"`
}

// struct tracking migration progress per entity, in the order entities started
type ProgressTracker struct {
	mu            sync.RWMutex
	startTime     time.Time
	order         []string
	stats         map[string]*EntityStats
	currentEntity string
	errors        []string
}

// struct holding migration metrics
type MigrationMetrics struct {
	ElapsedTime   time.Duration `json:"elapsed_time"`
	CurrentEntity string        `json:"current_entity"`
	Entities      []EntityStats `json:"entities"`
	TotalMigrated int           `json:"total_migrated"`
	TotalSkipped  int           `json:"total_skipped"`
	TotalFailed   int           `json:"total_failed"`
	ErrorCount    int           `json:"error_count"`
}

// creating a new progress tracker
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		startTime: time.Now(),
		stats:     make(map[string]*EntityStats),
		errors:    make([]string, 0),
	}
}

// StartEntity marks entity as current and records how many source rows it has
func (pt *ProgressTracker) StartEntity(entity string, found int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.entry(entity).Found = found
	pt.currentEntity = entity
}

func (pt *ProgressTracker) RecordMigrated(entity string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.entry(entity).Migrated++
}

func (pt *ProgressTracker) RecordSkipped(entity string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.entry(entity).Skipped++
}

// RecordFailed counts a failed record and keeps its message for the summary
func (pt *ProgressTracker) RecordFailed(entity, message string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.entry(entity).Failed++
	pt.errors = append(pt.errors, fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), entity, message))
}

// AddError keeps a run level error that is not tied to one record
func (pt *ProgressTracker) AddError(err string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.errors = append(pt.errors, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), err))
}

// Stats returns a copy of the counters for entity
func (pt *ProgressTracker) Stats(entity string) EntityStats {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	if s, ok := pt.stats[entity]; ok {
		return *s
	}
	return EntityStats{Entity: entity}
}

// must hold the lock
func (pt *ProgressTracker) entry(entity string) *EntityStats {
	s, ok := pt.stats[entity]
	if !ok {
		s = &EntityStats{Entity: entity}
		pt.stats[entity] = s
		pt.order = append(pt.order, entity)
	}
	return s
}

// returning current migration metrics
func (pt *ProgressTracker) GetMetrics() MigrationMetrics {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	metrics := MigrationMetrics{
		ElapsedTime:   time.Since(pt.startTime),
		CurrentEntity: pt.currentEntity,
		Entities:      make([]EntityStats, 0, len(pt.order)),
		ErrorCount:    len(pt.errors),
	}
	for _, entity := range pt.order {
		s := *pt.stats[entity]
		metrics.Entities = append(metrics.Entities, s)
		metrics.TotalMigrated += s.Migrated
		metrics.TotalSkipped += s.Skipped
		metrics.TotalFailed += s.Failed
	}
	return metrics
}

// returning the most recent errors(up to limit)
func (pt *ProgressTracker) GetRecentErrors(limit int) []string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	if len(pt.errors) <= limit {
		return append([]string(nil), pt.errors...)
	}
	return append([]string(nil), pt.errors[len(pt.errors)-limit:]...)
}

// formats the duration in a human readable way
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// printing final summary, one table row per entity
func (pt *ProgressTracker) PrintFinalSummary(w io.Writer) {
	metrics := pt.GetMetrics()

	fmt.Fprintln(w, "\n==== MIGRATION SUMMARY ====")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Entity", "Found", "Migrated", "Skipped", "Failed"})
	table.SetAutoFormatHeaders(false)
	for _, s := range metrics.Entities {
		table.Append([]string{
			s.Entity,
			strconv.Itoa(s.Found),
			strconv.Itoa(s.Migrated),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
		})
	}
	table.SetFooter([]string{"Total", "", strconv.Itoa(metrics.TotalMigrated), strconv.Itoa(metrics.TotalSkipped), strconv.Itoa(metrics.TotalFailed)})
	table.Render()

	fmt.Fprintf(w, "Total Duration: %s\n", formatDuration(metrics.ElapsedTime))

	if metrics.ErrorCount > 0 {
		fmt.Fprintf(w, "Errors Encountered: %d\n", metrics.ErrorCount)
		fmt.Fprintln(w, "Recent Errors:")
		for _, err := range pt.GetRecentErrors(5) {
			fmt.Fprintf(w, " - %s\n", err)
		}
	}
}
