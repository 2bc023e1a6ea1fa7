package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/config"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/internal/testlib"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/supabase"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) {
	t.Helper()
	defaults := []string{"--config", "", "--env-file", "", "--verify=false", "--mappings-out", "", "--passwords-out", "", "--log-level", "info"}
	require.NoError(t, rootCmd.ParseFlags(append(defaults, args...)))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_NAME", "school")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")

	out := filepath.Join(t.TempDir(), "mappings.json")
	parseFlags(t, "--verify", "--mappings-out", out)

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "school", cfg.MySQL.DBName)
	assert.Equal(t, 3307, cfg.MySQL.Port)
	assert.Equal(t, "localhost", cfg.MySQL.Host)
	assert.True(t, cfg.Verify.Enabled)
	assert.Equal(t, out, cfg.Output.MappingsFile)
	assert.Equal(t, config.DefaultPasswordsFile, cfg.Output.PasswordsFile)
}

func TestLoadConfigMissingServiceKey(t *testing.T) {
	t.Setenv("DB_NAME", "school")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "")

	parseFlags(t)

	_, err := loadConfig(rootCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_SERVICE_KEY")
	assert.Contains(t, err.Error(), "service_role key")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("debug", &buf)
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	_, err = newLogger("loud", &buf)
	assert.Error(t, err)
}

func TestRunFailsWhenSourceIsUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.MySQL.Host = "127.0.0.1"
	cfg.MySQL.Port = 1
	cfg.MySQL.DBName = "school"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx, cfg, testlib.MakeLogger(t), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to MySQL")
}

func testConfig(t *testing.T, platform *testlib.FakePlatform) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.MySQL.DBName = "school"
	cfg.Supabase.URL = platform.URL()
	cfg.Supabase.ServiceKey = "service-key"
	cfg.Output.MappingsFile = filepath.Join(dir, config.DefaultMappingsFile)
	cfg.Output.PasswordsFile = filepath.Join(dir, config.DefaultPasswordsFile)
	return cfg
}

func sqlmockSource(t *testing.T) (*database.MySQLClient, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewMySQLClientFromDB(db), mock
}

func emptyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id"})
}

func TestMigrateWritesArtifacts(t *testing.T) {
	platform := testlib.NewFakePlatform("service-key")
	defer platform.Close()
	cfg := testConfig(t, platform)
	cfg.Verify.Enabled = true

	source, mock := sqlmockSource(t)
	mock.ExpectQuery(database.SchoolsQuery).WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(1), "North", "north@school.org"))
	mock.ExpectQuery(database.ClassroomsQuery).WillReturnRows(emptyRows())
	mock.ExpectQuery(database.StudentsQuery).WillReturnRows(emptyRows())
	mock.ExpectQuery(database.StaffQuery).WillReturnRows(emptyRows())
	mock.ExpectQuery(database.GuardsQuery).WillReturnRows(emptyRows())
	mock.ExpectQuery(database.UsersQuery).WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "role", "school_id"}).AddRow(int64(4), "principal", nil, "school_admin", int64(1)))
	mock.ExpectQuery(database.SchoolEmailsQuery).WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(int64(1), "north@school.org"))
	mock.ExpectQuery(database.FeeRecordsQuery).WillReturnRows(emptyRows())
	mock.ExpectQuery(database.SalaryRecordsQuery).WillReturnRows(emptyRows())
	mock.ExpectQuery(database.AttendanceQuery).WillReturnRows(emptyRows())
	mock.ExpectQuery(database.VisitorsQuery).WillReturnRows(emptyRows())

	client := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey, 5*time.Second, testlib.MakeLogger(t))
	var out bytes.Buffer
	result := migrate(context.Background(), cfg, source, client, testlib.MakeLogger(t), &out)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, result.Success)

	var mappings map[string]map[string]interface{}
	data, err := os.ReadFile(cfg.Output.MappingsFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &mappings))
	assert.Len(t, mappings["schools"], 1)
	assert.Len(t, mappings["users"], 1)

	var passwords map[string]string
	data, err = os.ReadFile(cfg.Output.PasswordsFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &passwords))
	assert.Len(t, passwords["principal"], 16)

	for _, user := range platform.Users() {
		assert.Equal(t, "north@school.org", user["email"])
	}

	summary := out.String()
	assert.Contains(t, summary, "Pre-Migration Validation Summary")
	assert.Contains(t, summary, "Post-Migration Validation Summary")
	assert.Contains(t, summary, "Valid Tables: 10/10")
	assert.Contains(t, summary, "MIGRATION SUMMARY")
	assert.Contains(t, summary, "IMPORTANT NEXT STEPS")
}

func TestMigrateStillReportsAfterFetchFailure(t *testing.T) {
	platform := testlib.NewFakePlatform("service-key")
	defer platform.Close()
	cfg := testConfig(t, platform)

	source, mock := sqlmockSource(t)
	mock.ExpectQuery(database.SchoolsQuery).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "North"))
	mock.ExpectQuery(database.ClassroomsQuery).WillReturnError(errors.New("table classrooms is locked"))

	client := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey, 5*time.Second, testlib.MakeLogger(t))
	var out bytes.Buffer
	result := migrate(context.Background(), cfg, source, client, testlib.MakeLogger(t), &out)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "table classrooms is locked")

	data, err := os.ReadFile(cfg.Output.MappingsFile)
	require.NoError(t, err)
	var mappings map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &mappings))
	assert.Len(t, mappings["schools"], 1)

	_, err = os.Stat(cfg.Output.PasswordsFile)
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "MIGRATION SUMMARY")
}
