package migration

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/supabase"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// RoleSchoolAdmin is also the role given to users that have none
const RoleSchoolAdmin = "school_admin"

const tempPasswordBytes = 12

// ProvisionState is where a user ended up in the identity-then-profile
// sequence
type ProvisionState string

const (
	StatePending           ProvisionState = "pending"
	StateIdentityCreated   ProvisionState = "identity_created"
	StateProfileCreated    ProvisionState = "profile_created"
	StateRollbackAttempted ProvisionState = "rollback_attempted"
	StateFailed            ProvisionState = "failed"
)

// GenerateTempPassword returns 12 random bytes as URL-safe base64
func GenerateTempPassword() (string, error) {
	buf := make([]byte, tempPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SynthesizeEmail builds a placeholder address from the username, scoped to
// the source school when there is one
func SynthesizeEmail(username string, schoolID int64) string {
	local := norm.NFKC.String(strings.TrimSpace(username))
	if schoolID != 0 {
		return fmt.Sprintf("%s@school%d.local", local, schoolID)
	}
	return fmt.Sprintf("%s@migrated.local", local)
}

// ResolveEmail picks the sign-in address for a source user: its own email,
// then the school email for school admins, then a synthesized one.
// schoolEmails is keyed by source school id.
func ResolveEmail(row database.Row, schoolEmails map[int64]string) string {
	if email := strings.TrimSpace(TextOr(row["email"], "")); email != "" {
		return email
	}

	schoolID, _ := Int64(row["school_id"])
	if TextOr(row["role"], "") == RoleSchoolAdmin && schoolID != 0 {
		if email := schoolEmails[schoolID]; email != "" {
			return email
		}
	}
	return SynthesizeEmail(TextOr(row["username"], ""), schoolID)
}

// SchoolEmails indexes the school email query result by source school id
func SchoolEmails(rows []database.Row) map[int64]string {
	emails := make(map[int64]string, len(rows))
	for _, row := range rows {
		id, ok := Int64(row["id"])
		email := TextOr(row["email"], "")
		if ok && email != "" {
			emails[id] = email
		}
	}
	return emails
}

// Users creates an auth identity and then a profile row for every source
// user. A profile failure deletes the identity again. Returns the user
// mapping (source id to identity UUID) and the temporary passwords by
// username.
func (m *Migrator) Users(ctx context.Context, rows []database.Row, schoolEmails map[int64]string, schools, staff, students, guards IDMap) (IDMap, map[string]string) {
	logger := m.logger.WithFields(logrus.Fields{"entity": EntityUsers, "table": TableUsers})
	m.tracker.StartEntity(EntityUsers, len(rows))
	logger.Infof("Found %d %s to migrate", len(rows), EntityUsers)
	logger.Warn("Passwords cannot be migrated, temporary passwords will be generated")

	users := IDMap{}
	passwords := make(map[string]string)

	for _, row := range sortRows(rows) {
		if ctx.Err() != nil {
			logger.Warn("Migration interrupted, remaining users not processed")
			break
		}

		userLogger := logger.WithFields(logrus.Fields{"source_id": row["id"], "username": row["username"]})
		state, err := m.provisionUser(ctx, userLogger, row, schoolEmails, schools, staff, students, guards, users, passwords)
		userLogger = userLogger.WithField("state", state)

		switch state {
		case StateProfileCreated:
			m.tracker.RecordMigrated(EntityUsers)
			userLogger.Info("Migrated user")
		default:
			m.tracker.RecordFailed(EntityUsers, fmt.Sprintf("user %v: %s", row["username"], err))
			userLogger.WithError(err).Error("Failed to migrate user")
		}
	}

	logger.Infof("Completed: %d %s migrated", len(users), EntityUsers)
	return users, passwords
}

func (m *Migrator) provisionUser(ctx context.Context, logger logrus.FieldLogger, row database.Row, schoolEmails map[int64]string, schools, staff, students, guards, users IDMap, passwords map[string]string) (ProvisionState, error) {
	oldID, ok := Int64(row["id"])
	if !ok {
		return StateFailed, errors.New("user has no usable id")
	}
	username := TextOr(row["username"], "")
	if username == "" {
		return StateFailed, errors.New("user has no username")
	}

	email := ResolveEmail(row, schoolEmails)
	password, err := m.newPassword()
	if err != nil {
		return StateFailed, errors.Wrap(err, "failed to generate temporary password")
	}
	passwords[username] = password

	identity, err := m.dest.CreateUser(ctx, supabase.AdminUserAttributes{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
		UserMetadata: map[string]interface{}{
			"username":             username,
			"migrated_from_django": true,
			"old_user_id":          oldID,
		},
	})
	if err != nil {
		return StateFailed, errors.Wrap(err, "failed to create auth identity")
	}
	logger = logger.WithFields(logrus.Fields{"email": email, "identity_id": identity.ID})
	logger.Debug("Auth identity created")

	profile := supabase.Record{
		"id":                identity.ID,
		"username":          username,
		"school_id":         resolveOptional(schools, row["school_id"]),
		"role":              TextOr(row["role"], RoleSchoolAdmin),
		"linked_staff_id":   resolveOptional(staff, row["linked_staff_id"]),
		"linked_student_id": resolveOptional(students, row["linked_student_id"]),
		"linked_guard_id":   resolveOptional(guards, row["linked_guard_id"]),
		"created_at":        Timestamp(row["date_joined"]),
	}
	if _, err := m.dest.Insert(ctx, TableUsers, profile); err != nil {
		m.compensate(ctx, logger, oldID, username, identity.ID)
		return StateRollbackAttempted, errors.Wrap(err, "failed to create user profile")
	}

	if !users.Add(oldID, identity.ID) {
		logger.Warn("Duplicate source id, mapping keeps the first identity")
	}
	return StateProfileCreated, nil
}
