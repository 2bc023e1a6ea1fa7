package migration

import (
	"context"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/supabase"
)

// Fact records are never referenced later, so they are counted and not
// registered.

// FeeRecords needs both the school and the student
func (m *Migrator) FeeRecords(ctx context.Context, rows []database.Row, schools, students IDMap) int {
	return m.migrateRows(ctx, EntityFeeRecords, TableFeeRecords, rows, func(row database.Row) (supabase.Record, error) {
		return transformFeeRecord(row, schools, students)
	}, nil)
}

// SalaryRecords needs both the school and the staff member
func (m *Migrator) SalaryRecords(ctx context.Context, rows []database.Row, schools, staff IDMap) int {
	return m.migrateRows(ctx, EntitySalaryRecords, TableSalaryRecords, rows, func(row database.Row) (supabase.Record, error) {
		return transformSalaryRecord(row, schools, staff)
	}, nil)
}

// Attendance needs the school; staff and student are optional
func (m *Migrator) Attendance(ctx context.Context, rows []database.Row, schools, staff, students IDMap) int {
	return m.migrateRows(ctx, EntityAttendance, TableAttendance, rows, func(row database.Row) (supabase.Record, error) {
		return transformAttendance(row, schools, staff, students)
	}, nil)
}

// Visitors needs the school; the guard is optional
func (m *Migrator) Visitors(ctx context.Context, rows []database.Row, schools, guards IDMap) int {
	return m.migrateRows(ctx, EntityVisitorRecords, TableVisitors, rows, func(row database.Row) (supabase.Record, error) {
		return transformVisitor(row, schools, guards)
	}, nil)
}

func transformFeeRecord(row database.Row, schools, students IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}
	studentID, err := resolveRequired(students, row["student_id"], "student")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.set("student_id", studentID)
	b.copy("month")
	b.copy("year")
	b.copy("academic_year")
	b.jsonMap("fee_components")
	b.money("total_amount")
	b.moneyOr("late_fee", "0")
	b.moneyOr("discount", "0")
	b.boolean("paid")
	b.date("paid_on")
	b.textOrEmpty("payment_mode")
	b.textOrEmpty("notes")
	b.timestamps()
	return b.build()
}

func transformSalaryRecord(row database.Row, schools, staff IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}
	staffID, err := resolveRequired(staff, row["staff_id"], "staff")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.set("staff_id", staffID)
	b.copy("month")
	b.copy("year")
	b.money("base_salary")
	b.jsonMap("allowances")
	b.jsonMap("deductions")
	b.moneyOr("bonuses", "0")
	b.money("net_salary")
	b.boolean("paid")
	b.date("paid_on")
	b.textOrEmpty("payment_mode")
	b.textOrEmpty("notes")
	b.timestamps()
	return b.build()
}

func transformAttendance(row database.Row, schools, staff, students IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.set("staff_id", resolveOptional(staff, row["staff_id"]))
	b.set("student_id", resolveOptional(students, row["student_id"]))
	b.date("date")
	b.copy("status")
	b.float("hours_worked")
	b.textOrEmpty("notes")
	b.timestamps()
	return b.build()
}

func transformVisitor(row database.Row, schools, guards IDMap) (supabase.Record, error) {
	schoolID, err := resolveRequired(schools, row["school_id"], "school")
	if err != nil {
		return nil, err
	}

	b := newRecord(row)
	b.set("school_id", schoolID)
	b.set("guard_id", resolveOptional(guards, row["guard_id"]))
	b.copy("name")
	b.textOrEmpty("contact_no")
	b.textOrEmpty("purpose")
	b.textOrEmpty("id_proof")
	b.textOrEmpty("vehicle_no")
	b.date("date")
	b.clock("time_in")
	b.clock("time_out")
	b.textOrEmpty("notes")
	b.timestamps()
	return b.build()
}
