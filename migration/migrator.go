package migration

import (
	"context"
	"fmt"
	"sort"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/monitoring"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/supabase"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// entity names used in logs and the summary
const (
	EntitySchools        = "Schools"
	EntityClassrooms     = "Classrooms"
	EntityStudents       = "Students"
	EntityStaff          = "Staff"
	EntityGuards         = "Guards"
	EntityUsers          = "Users"
	EntityFeeRecords     = "Fee Records"
	EntitySalaryRecords  = "Salary Records"
	EntityAttendance     = "Attendance Records"
	EntityVisitorRecords = "Visitor Records"
)

// destination tables
const (
	TableSchools       = "schools"
	TableClassrooms    = "classrooms"
	TableStudents      = "students"
	TableStaff         = "staff"
	TableGuards        = "guard"
	TableUsers         = "users"
	TableFeeRecords    = "fee_records"
	TableSalaryRecords = "salary_records"
	TableAttendance    = "attendance"
	TableVisitors      = "visitor"
)

// Tables lists the destination tables in migration order
var Tables = []string{
	TableSchools, TableClassrooms, TableStudents, TableStaff, TableGuards,
	TableUsers, TableFeeRecords, TableSalaryRecords, TableAttendance, TableVisitors,
}

// Destination is the write side of the migration, kept as an interface for
// ease with mock tests
type Destination interface {
	Insert(ctx context.Context, table string, record supabase.Record) (supabase.Record, error)
	CreateUser(ctx context.Context, attrs supabase.AdminUserAttributes) (*supabase.AuthUser, error)
	DeleteUser(ctx context.Context, id string) error
}

// Migrator moves one entity batch at a time into the destination. It holds
// no id mappings itself; parents are passed to every call.
type Migrator struct {
	dest        Destination
	logger      logrus.FieldLogger
	tracker     *monitoring.ProgressTracker
	newPassword func() (string, error)
	orphans     []OrphanedIdentity
}

func NewMigrator(dest Destination, tracker *monitoring.ProgressTracker, logger logrus.FieldLogger) *Migrator {
	return &Migrator{
		dest:        dest,
		logger:      logger,
		tracker:     tracker,
		newPassword: GenerateTempPassword,
	}
}

// skipError marks a record that is left out on purpose, not failed
type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	return e.reason
}

func skipf(format string, args ...interface{}) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

func isSkip(err error) bool {
	_, ok := errors.Cause(err).(*skipError)
	return ok
}

// resolveRequired maps a required parent reference; an unresolved parent
// skips the record
func resolveRequired(parents IDMap, value interface{}, parent string) (interface{}, error) {
	oldID, ok := Int64(value)
	if !ok || oldID == 0 {
		return nil, skipf("no %s reference", parent)
	}
	newID, ok := parents.Lookup(oldID)
	if !ok {
		return nil, skipf("%s %d was not migrated", parent, oldID)
	}
	return newID, nil
}

// resolveOptional maps an optional reference, unresolved ones become nil
func resolveOptional(parents IDMap, value interface{}) interface{} {
	oldID, ok := Int64(value)
	if !ok || oldID == 0 {
		return nil
	}
	if newID, ok := parents.Lookup(oldID); ok {
		return newID
	}
	return nil
}

// sortRows orders a result set by source id ascending
func sortRows(rows []database.Row) []database.Row {
	sorted := append([]database.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := Int64(sorted[i]["id"])
		b, _ := Int64(sorted[j]["id"])
		return a < b
	})
	return sorted
}

type transformFunc func(row database.Row) (supabase.Record, error)

// migrateRows transforms and inserts every row of one entity. When registry
// is not nil the destination id of each inserted row is registered under the
// source id. Returns the number of rows inserted.
func (m *Migrator) migrateRows(ctx context.Context, entity, table string, rows []database.Row, transform transformFunc, registry IDMap) int {
	logger := m.logger.WithFields(logrus.Fields{"entity": entity, "table": table})
	m.tracker.StartEntity(entity, len(rows))
	logger.Infof("Found %d %s to migrate", len(rows), entity)

	count := 0
	for _, row := range sortRows(rows) {
		if ctx.Err() != nil {
			logger.Warn("Migration interrupted, remaining rows not processed")
			break
		}

		oldID, ok := Int64(row["id"])
		rowLogger := logger.WithField("source_id", row["id"])
		if !ok {
			m.tracker.RecordFailed(entity, "row without id")
			rowLogger.Error("Row has no usable id")
			continue
		}

		newID, err := m.migrateRow(ctx, table, row, transform)
		if err != nil {
			if isSkip(err) {
				m.tracker.RecordSkipped(entity)
				rowLogger.WithError(err).Warn("Skipping record")
				continue
			}
			m.tracker.RecordFailed(entity, fmt.Sprintf("id %d: %s", oldID, err))
			rowLogger.WithError(err).Error("Failed to migrate record")
			continue
		}

		if registry != nil && !registry.Add(oldID, newID) {
			rowLogger.WithField("destination_id", newID).Warn("Duplicate source id, mapping keeps the first destination id")
		}
		count++
		m.tracker.RecordMigrated(entity)
		rowLogger.WithField("destination_id", newID).Debug("Migrated record")
	}

	logger.Infof("Completed: %d %s migrated", count, entity)
	return count
}

// migrateRow handles a single record; a panic in a transform fails only
// that record
func (m *Migrator) migrateRow(ctx context.Context, table string, row database.Row, transform transformFunc) (newID interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while migrating record: %v", r)
		}
	}()

	record, err := transform(row)
	if err != nil {
		return nil, err
	}

	inserted, err := m.dest.Insert(ctx, table, record)
	if err != nil {
		return nil, err
	}
	newID, ok := inserted["id"]
	if !ok || newID == nil {
		return nil, errors.Errorf("insert into %s returned no id", table)
	}
	return newID, nil
}

// Schools migrates schools; they depend on nothing
func (m *Migrator) Schools(ctx context.Context, rows []database.Row) IDMap {
	schools := IDMap{}
	m.migrateRows(ctx, EntitySchools, TableSchools, rows, transformSchool, schools)
	return schools
}

// Classrooms migrates classrooms; a classroom needs its school
func (m *Migrator) Classrooms(ctx context.Context, rows []database.Row, schools IDMap) IDMap {
	classrooms := IDMap{}
	m.migrateRows(ctx, EntityClassrooms, TableClassrooms, rows, func(row database.Row) (supabase.Record, error) {
		return transformClassroom(row, schools)
	}, classrooms)
	return classrooms
}

// Students migrates students; the school is required, the classroom is not
func (m *Migrator) Students(ctx context.Context, rows []database.Row, schools, classrooms IDMap) IDMap {
	students := IDMap{}
	m.migrateRows(ctx, EntityStudents, TableStudents, rows, func(row database.Row) (supabase.Record, error) {
		return transformStudent(row, schools, classrooms)
	}, students)
	return students
}

func (m *Migrator) Staff(ctx context.Context, rows []database.Row, schools IDMap) IDMap {
	staff := IDMap{}
	m.migrateRows(ctx, EntityStaff, TableStaff, rows, func(row database.Row) (supabase.Record, error) {
		return transformStaff(row, schools)
	}, staff)
	return staff
}

func (m *Migrator) Guards(ctx context.Context, rows []database.Row, schools IDMap) IDMap {
	guards := IDMap{}
	m.migrateRows(ctx, EntityGuards, TableGuards, rows, func(row database.Row) (supabase.Record, error) {
		return transformGuard(row, schools)
	}, guards)
	return guards
}

func transformSchool(row database.Row) (supabase.Record, error) {
	b := newRecord(row)
	b.copy("name")
	b.copy("mobile")
	b.textOrNil("email")
	b.textOrNil("address")
	b.set("logo", FileName(row["logo"]))
	b.date("subscription_start")
	b.date("subscription_end")
	b.boolean("active")
	b.money("payment_amount")
	b.date("last_payment_date")
	b.timestamps()
	return b.build()
}

func transformClassroom(row database.Row, schools IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.copy("name")
	b.copy("section")
	b.timestamps()
	return b.build()
}

func transformStudent(row database.Row, schools, classrooms IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.set("classroom_id", resolveOptional(classrooms, row["classroom_id"]))
	b.textOrNil("admission_no")
	b.textOrNil("roll_number")
	b.copy("first_name")
	b.copy("last_name")
	b.date("dob")
	b.copy("gender")
	b.copy("mobile")
	b.copy("address")
	b.copy("parent_guardian_name")
	b.copy("parent_guardian_contact")
	b.textOr("enrollment_status", "active")
	b.money("total_amount")
	b.copy("profile_picture")
	b.timestamps()
	return b.build()
}

func transformStaff(row database.Row, schools IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.copy("name")
	b.copy("designation")
	b.copy("qualifications")
	b.copy("mobile")
	b.date("joining_date")
	b.textOr("employment_status", "active")
	b.money("monthly_salary")
	b.money("total_amount")
	b.copy("profile_picture")
	b.textOrEmpty("bank_account_no")
	b.textOrEmpty("bank_name")
	b.textOrEmpty("ifsc_code")
	b.timestamps()
	return b.build()
}

func transformGuard(row database.Row, schools IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.copy("name")
	b.textOrEmpty("mobile")
	b.textOrEmpty("shift")
	b.textOrNil("employee_id")
	b.copy("profile_picture")
	b.timestamps()
	return b.build()
}
