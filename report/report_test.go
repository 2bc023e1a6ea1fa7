package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/internal/testlib"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/migration"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *migration.Registry {
	registry := migration.NewRegistry()
	registry.Schools.Add(1, json.Number("101"))
	registry.Schools.Add(2, json.Number("102"))
	registry.Classrooms.Add(11, json.Number("201"))
	registry.Users.Add(5, "6f1c2a8e-0c55-4c6b-9a43-0d4f6f0b1e11")
	return registry
}

func TestWriteMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "migration_mappings.json")
	require.NoError(t, WriteMappings(path, testRegistry()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"classrooms\"")

	var mappings map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &mappings))

	assert.Len(t, mappings, 6)
	assert.Equal(t, float64(101), mappings["schools"]["1"])
	assert.Equal(t, float64(102), mappings["schools"]["2"])
	assert.Equal(t, "6f1c2a8e-0c55-4c6b-9a43-0d4f6f0b1e11", mappings["users"]["5"])
	assert.Empty(t, mappings["guards"])
}

func TestWritePasswords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp_passwords.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	require.NoError(t, WritePasswords(path, map[string]string{"jdoe": "s3cr3t"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var passwords map[string]string
	require.NoError(t, json.Unmarshal(data, &passwords))
	assert.Equal(t, map[string]string{"jdoe": "s3cr3t"}, passwords)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, WritePasswords(empty, nil))
	data, err = os.ReadFile(empty)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestPrintNextSteps(t *testing.T) {
	var buf bytes.Buffer
	PrintNextSteps(&buf, "m.json", "p.json", []migration.OrphanedIdentity{
		{SourceID: 3, Username: "ghost", IdentityID: "abc"},
	})
	out := buf.String()

	assert.Contains(t, out, "Mappings saved to: m.json")
	assert.Contains(t, out, "Temporary passwords saved to: p.json")
	assert.Contains(t, out, "ghost (source id 3): abc")
	assert.Contains(t, out, "Upload media files to Supabase Storage")
}

func testResult() *migration.MigrationResult {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &migration.MigrationResult{
		Success:       true,
		Registry:      testRegistry(),
		TempPasswords: map[string]string{"jdoe": "do-not-archive"},
		Migrated:      map[string]int{migration.TableSchools: 2},
		StartTime:     start,
		EndTime:       start.Add(time.Minute),
	}
}

func TestNewRunDocument(t *testing.T) {
	tracker := monitoring.NewProgressTracker()
	tracker.StartEntity(migration.EntitySchools, 2)
	tracker.RecordMigrated(migration.EntitySchools)
	tracker.RecordMigrated(migration.EntitySchools)

	doc := NewRunDocument(testResult(), tracker.GetMetrics(), nil)

	assert.True(t, doc.Success)
	assert.Equal(t, time.Minute, doc.FinishedAt.Sub(doc.StartedAt))
	require.Len(t, doc.Entities, 1)
	assert.Equal(t, 2, doc.Entities[0].Migrated)
	assert.Equal(t, json.Number("101"), doc.Mappings["schools"]["1"])
	assert.Equal(t, "6f1c2a8e-0c55-4c6b-9a43-0d4f6f0b1e11", doc.Mappings["users"]["5"])

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "do-not-archive")
}

func TestMongoArchive(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	client := database.NewMongoDBClient(uri, "school_migration_test")
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	archive := NewMongoArchive(client, "runs", testlib.MakeLogger(t))
	id, err := archive.Save(ctx, NewRunDocument(testResult(), monitoring.MigrationMetrics{}, nil))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
