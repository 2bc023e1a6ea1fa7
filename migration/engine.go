package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/monitoring"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Migration process keeper
type MigrationEngine struct {
	Source   database.SourceClient
	Migrator *Migrator
	tracker  *monitoring.ProgressTracker
	logger   logrus.FieldLogger
}

// Results of the migration. On an early stop it holds whatever was migrated
// up to that point.
type MigrationResult struct {
	Success            bool
	Registry           *Registry
	TempPasswords      map[string]string
	Migrated           map[string]int // by destination table
	OrphanedIdentities []OrphanedIdentity
	Errors             []string
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

// creating a new migration engine
func NewMigrationEngine(source database.SourceClient, migrator *Migrator, tracker *monitoring.ProgressTracker, logger logrus.FieldLogger) *MigrationEngine {
	return &MigrationEngine{
		Source:   source,
		Migrator: migrator,
		tracker:  tracker,
		logger:   logger,
	}
}

type migrationStep struct {
	entity string
	table  string
	query  string
	run    func(ctx context.Context, rows []database.Row) (int, error)
}

func (me *MigrationEngine) steps(result *MigrationResult) []migrationStep {
	reg := result.Registry
	m := me.Migrator

	return []migrationStep{
		{EntitySchools, TableSchools, database.SchoolsQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			reg.Schools = m.Schools(ctx, rows)
			return len(reg.Schools), nil
		}},
		{EntityClassrooms, TableClassrooms, database.ClassroomsQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			reg.Classrooms = m.Classrooms(ctx, rows, reg.Schools)
			return len(reg.Classrooms), nil
		}},
		{EntityStudents, TableStudents, database.StudentsQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			reg.Students = m.Students(ctx, rows, reg.Schools, reg.Classrooms)
			return len(reg.Students), nil
		}},
		{EntityStaff, TableStaff, database.StaffQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			reg.Staff = m.Staff(ctx, rows, reg.Schools)
			return len(reg.Staff), nil
		}},
		{EntityGuards, TableGuards, database.GuardsQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			reg.Guards = m.Guards(ctx, rows, reg.Schools)
			return len(reg.Guards), nil
		}},
		{EntityUsers, TableUsers, database.UsersQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			emailRows, err := me.Source.FetchRows(ctx, database.SchoolEmailsQuery)
			if err != nil {
				return 0, errors.Wrap(err, "failed to fetch school emails")
			}
			reg.Users, result.TempPasswords = m.Users(ctx, rows, SchoolEmails(emailRows), reg.Schools, reg.Staff, reg.Students, reg.Guards)
			return len(reg.Users), nil
		}},
		{EntityFeeRecords, TableFeeRecords, database.FeeRecordsQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			return m.FeeRecords(ctx, rows, reg.Schools, reg.Students), nil
		}},
		{EntitySalaryRecords, TableSalaryRecords, database.SalaryRecordsQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			return m.SalaryRecords(ctx, rows, reg.Schools, reg.Staff), nil
		}},
		{EntityAttendance, TableAttendance, database.AttendanceQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			return m.Attendance(ctx, rows, reg.Schools, reg.Staff, reg.Students), nil
		}},
		{EntityVisitorRecords, TableVisitors, database.VisitorsQuery, func(ctx context.Context, rows []database.Row) (int, error) {
			return m.Visitors(ctx, rows, reg.Schools, reg.Guards), nil
		}},
	}
}

// ExecuteMigration runs the ten steps in dependency order. A fetch failure,
// an interrupt or a panic stops the run; the partial result is returned with
// the error.
func (me *MigrationEngine) ExecuteMigration(ctx context.Context) (result *MigrationResult, err error) {
	result = &MigrationResult{
		Registry:      NewRegistry(),
		TempPasswords: make(map[string]string),
		Migrated:      make(map[string]int),
		Errors:        make([]string, 0),
		StartTime:     time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("migration panicked: %v", r)
		}
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			me.tracker.AddError(err.Error())
		}
		result.OrphanedIdentities = me.Migrator.Orphans()
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		result.Success = err == nil
	}()

	me.logger.Info("Starting school data migration")

	for i, step := range me.steps(result) {
		logger := me.logger.WithField("entity", step.entity)
		logger.Infof("STEP %d: Migrating %s", i+1, step.entity)

		if err := ctx.Err(); err != nil {
			return result, errors.Wrapf(err, "migration interrupted before %s", step.entity)
		}

		rows, err := me.Source.FetchRows(ctx, step.query)
		if err != nil {
			return result, errors.Wrapf(err, "failed to fetch %s", step.entity)
		}

		count, err := step.run(ctx, rows)
		result.Migrated[step.table] = count
		if err != nil {
			return result, errors.Wrapf(err, "failed to migrate %s", step.entity)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, errors.Wrap(err, "migration interrupted")
	}

	me.logger.WithField("duration", fmt.Sprint(time.Since(result.StartTime).Round(time.Millisecond))).Info("Migration completed")
	return result, nil
}
