package migration

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// OrphanedIdentity is an auth identity whose profile insert failed and whose
// deletion failed as well. It stays in the destination and is only reported.
type OrphanedIdentity struct {
	SourceID   int64     `json:"source_id" bson:"source_id"`
	Username   string    `json:"username" bson:"username"`
	IdentityID string    `json:"identity_id" bson:"identity_id"`
	Error      string    `json:"error" bson:"error"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// compensate deletes an identity whose profile could not be created. It is
// best effort: a failed delete is logged and recorded, never retried.
func (m *Migrator) compensate(ctx context.Context, logger logrus.FieldLogger, sourceID int64, username, identityID string) {
	// an interrupt must not stop the cleanup of an identity created just now
	ctx = context.WithoutCancel(ctx)

	if err := m.dest.DeleteUser(ctx, identityID); err != nil {
		logger.WithError(err).Error("Failed to delete auth identity after profile failure, identity is orphaned")
		m.orphans = append(m.orphans, OrphanedIdentity{
			SourceID:   sourceID,
			Username:   username,
			IdentityID: identityID,
			Error:      err.Error(),
			Timestamp:  time.Now().UTC(),
		})
		return
	}
	logger.Warn("Rolled back auth identity after profile failure")
}

// Orphans returns the identities left behind by failed compensations
func (m *Migrator) Orphans() []OrphanedIdentity {
	return append([]OrphanedIdentity(nil), m.orphans...)
}
