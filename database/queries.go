package database

// Fixed read-only statements against the Django schema, one per table.
const (
	SchoolsQuery = `
		SELECT id, name, mobile, email, address, logo,
		       subscription_start, subscription_end, active,
		       payment_amount, last_payment_date,
		       created_at, updated_at
		FROM schools
		ORDER BY id`

	SchoolEmailsQuery = `
		SELECT id, email FROM schools WHERE email IS NOT NULL AND email != ''`

	ClassroomsQuery = `
		SELECT id, school_id, name, section, created_at, updated_at
		FROM classrooms
		ORDER BY id`

	StudentsQuery = `
		SELECT id, school_id, classroom_id, admission_no, roll_number,
		       first_name, last_name, dob, gender, mobile, address,
		       parent_guardian_name, parent_guardian_contact,
		       enrollment_status, total_amount, profile_picture,
		       created_at, updated_at
		FROM students
		ORDER BY id`

	StaffQuery = `
		SELECT id, school_id, name, designation, qualifications, mobile,
		       joining_date, employment_status, monthly_salary, total_amount,
		       profile_picture, bank_account_no, bank_name, ifsc_code,
		       created_at, updated_at
		FROM staff
		ORDER BY id`

	GuardsQuery = `
		SELECT id, school_id, name, mobile, shift, employee_id, profile_picture,
		       created_at, updated_at
		FROM guard
		ORDER BY id`

	UsersQuery = `
		SELECT id, username, password, email, first_name, last_name,
		       is_superuser, is_active, date_joined, last_login,
		       school_id, role, linked_staff_id, linked_student_id, linked_guard_id
		FROM users
		ORDER BY id`

	FeeRecordsQuery = `
		SELECT id, school_id, student_id, month, year, academic_year,
		       fee_components, total_amount, late_fee, discount,
		       paid, paid_on, payment_mode, notes, created_at, updated_at
		FROM fee_records
		ORDER BY id`

	SalaryRecordsQuery = `
		SELECT id, school_id, staff_id, month, year,
		       base_salary, allowances, deductions, bonuses, net_salary,
		       paid, paid_on, payment_mode, notes, created_at, updated_at
		FROM salary_records
		ORDER BY id`

	AttendanceQuery = `
		SELECT id, school_id, staff_id, student_id, date, status,
		       hours_worked, notes, created_at, updated_at
		FROM attendance
		ORDER BY id`

	VisitorsQuery = `
		SELECT id, school_id, guard_id, name, contact_no, purpose,
		       id_proof, vehicle_no, date, time_in, time_out, notes,
		       created_at, updated_at
		FROM visitor
		ORDER BY id`
)
