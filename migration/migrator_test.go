package migration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchoolsRegistersDestinationIDs(t *testing.T) {
	m, platform, tracker := newTestMigrator(t)

	// out of order on purpose, migration runs by id
	schools := m.Schools(context.Background(), []database.Row{
		{"id": int64(20), "name": "South", "payment_amount": "99.99"},
		{"id": int64(10), "name": "North", "payment_amount": "1500.50"},
	})

	assert.Equal(t, IDMap{10: json.Number("1"), 20: json.Number("2")}, schools)

	rows := platform.Rows(TableSchools)
	require.Len(t, rows, 2)
	assert.Equal(t, "North", rows[0]["name"])
	assert.Equal(t, "1500.50", rows[0]["payment_amount"])

	src := decimal.RequireFromString("99.99")
	dst := decimal.RequireFromString(rows[1]["payment_amount"].(string))
	assert.True(t, src.Equal(dst))

	assert.Equal(t, 2, tracker.Stats(EntitySchools).Migrated)
}

func TestMissingParentIsSkipped(t *testing.T) {
	m, platform, tracker := newTestMigrator(t)
	schools := IDMap{1: json.Number("100")}

	classrooms := m.Classrooms(context.Background(), []database.Row{
		{"id": int64(1), "school_id": int64(1), "name": "Grade 1", "section": "A"},
		{"id": int64(2), "school_id": int64(2), "name": "Grade 2", "section": "B"},
	}, schools)

	assert.Equal(t, IDMap{1: json.Number("1")}, classrooms)
	_, ok := classrooms[2]
	assert.False(t, ok)

	assert.Equal(t, 1, platform.InsertCalls())
	rows := platform.Rows(TableClassrooms)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("100"), rows[0]["school_id"])

	stats := tracker.Stats(EntityClassrooms)
	assert.Equal(t, 1, stats.Migrated)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
}

func TestInsertFailureDoesNotStopBatch(t *testing.T) {
	m, platform, tracker := newTestMigrator(t)
	platform.FailInsert(TableStaff, func(record map[string]interface{}) bool {
		return record["name"] == "Bad"
	})
	schools := IDMap{1: json.Number("7")}

	staff := m.Staff(context.Background(), []database.Row{
		{"id": int64(1), "school_id": int64(1), "name": "Bad"},
		{"id": int64(2), "school_id": int64(1), "name": "Good"},
		{"id": nil, "school_id": int64(1), "name": "No id"},
	}, schools)

	assert.Len(t, staff, 1)
	_, ok := staff[2]
	assert.True(t, ok)

	stats := tracker.Stats(EntityStaff)
	assert.Equal(t, 1, stats.Migrated)
	assert.Equal(t, 2, stats.Failed)
}

func TestMalformedJSONIsStillInserted(t *testing.T) {
	m, platform, _ := newTestMigrator(t)
	schools := IDMap{1: json.Number("1")}
	students := IDMap{5: json.Number("50")}

	count := m.FeeRecords(context.Background(), []database.Row{
		{"id": int64(1), "school_id": int64(1), "student_id": int64(5), "fee_components": `{"tuition": 1200.50`, "total_amount": "1200.50"},
		{"id": int64(2), "school_id": int64(1), "student_id": int64(5), "fee_components": `{"tuition": 1200.50}`, "late_fee": "25.00"},
		{"id": int64(3), "school_id": int64(1), "student_id": int64(6)},
	}, schools, students)

	assert.Equal(t, 2, count)

	rows := platform.Rows(TableFeeRecords)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]interface{}{}, rows[0]["fee_components"])
	assert.Equal(t, "1200.50", rows[0]["total_amount"])
	assert.Equal(t, "0", rows[0]["late_fee"])
	assert.Equal(t, map[string]interface{}{"tuition": json.Number("1200.50")}, rows[1]["fee_components"])
	assert.Equal(t, "25.00", rows[1]["late_fee"])
	assert.Equal(t, json.Number("50"), rows[1]["student_id"])
}

func TestFactMigrators(t *testing.T) {
	m, platform, tracker := newTestMigrator(t)
	ctx := context.Background()
	schools := IDMap{1: json.Number("1")}
	staff := IDMap{2: json.Number("20")}
	guards := IDMap{3: json.Number("30")}

	salaries := m.SalaryRecords(ctx, []database.Row{
		{"id": int64(1), "school_id": int64(1), "staff_id": int64(2), "allowances": `{"hra": "5000.00"}`, "deductions": "oops", "net_salary": "45000.00"},
		{"id": int64(2), "school_id": int64(1), "staff_id": int64(9)},
	}, schools, staff)
	assert.Equal(t, 1, salaries)
	salary := platform.Rows(TableSalaryRecords)[0]
	assert.Equal(t, map[string]interface{}{"hra": "5000.00"}, salary["allowances"])
	assert.Equal(t, map[string]interface{}{}, salary["deductions"])
	assert.Equal(t, "0", salary["bonuses"])
	assert.Equal(t, "45000.00", salary["net_salary"])

	attendance := m.Attendance(ctx, []database.Row{
		{"id": int64(1), "school_id": int64(1), "staff_id": int64(2), "status": "present", "hours_worked": 8.0},
		{"id": int64(2), "school_id": int64(4), "status": "absent"},
	}, schools, staff, IDMap{})
	assert.Equal(t, 1, attendance)
	assert.Equal(t, json.Number("20"), platform.Rows(TableAttendance)[0]["staff_id"])

	visitors := m.Visitors(ctx, []database.Row{
		{"id": int64(1), "school_id": int64(1), "guard_id": int64(3), "name": "Courier", "time_in": "10:00:00"},
		{"id": int64(2), "school_id": int64(1), "guard_id": int64(8), "name": "Parent"},
	}, schools, guards)
	assert.Equal(t, 2, visitors)
	rows := platform.Rows(TableVisitors)
	assert.Equal(t, json.Number("30"), rows[0]["guard_id"])
	assert.Nil(t, rows[1]["guard_id"])

	assert.Equal(t, 1, tracker.Stats(EntitySalaryRecords).Skipped)
	assert.Equal(t, 1, tracker.Stats(EntityAttendance).Skipped)
}

func TestInterruptedBatchStops(t *testing.T) {
	m, platform, _ := newTestMigrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	schools := m.Schools(ctx, []database.Row{{"id": int64(1), "name": "North"}})

	assert.Empty(t, schools)
	assert.Equal(t, 0, platform.InsertCalls())
}

// warnings returns the messages of every warning logged through hook
func warnings(hook *logrustest.Hook) []string {
	var messages []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			messages = append(messages, entry.Message)
		}
	}
	return messages
}

func TestDuplicateSourceIDKeepsFirstMapping(t *testing.T) {
	ctx := context.Background()

	t.Run("registered entity", func(t *testing.T) {
		m, platform, tracker := newTestMigrator(t)
		logger, hook := logrustest.NewNullLogger()
		m.logger = logger

		schools := m.Schools(ctx, []database.Row{
			{"id": int64(5), "name": "First"},
			{"id": int64(5), "name": "Second"},
		})

		assert.Equal(t, IDMap{5: json.Number("1")}, schools)
		assert.Len(t, platform.Rows(TableSchools), 2)
		assert.Equal(t, 2, tracker.Stats(EntitySchools).Migrated)
		assert.Contains(t, warnings(hook), "Duplicate source id, mapping keeps the first destination id")
	})

	t.Run("users", func(t *testing.T) {
		m, platform, _ := newTestMigrator(t)
		logger, hook := logrustest.NewNullLogger()
		m.logger = logger

		users, _ := m.Users(ctx, []database.Row{
			{"id": int64(9), "username": "first", "email": "first@example.com", "role": "teacher"},
			{"id": int64(9), "username": "second", "email": "second@example.com", "role": "teacher"},
		}, nil, IDMap{}, IDMap{}, IDMap{}, IDMap{})

		require.Len(t, users, 1)
		profiles := platform.Rows(TableUsers)
		require.Len(t, profiles, 2)
		assert.Equal(t, profiles[0]["id"], users[9])
		assert.Contains(t, warnings(hook), "Duplicate source id, mapping keeps the first identity")
	})
}
