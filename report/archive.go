package report

import (
	"context"
	"strconv"
	"time"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/migration"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/monitoring"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/validation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RunDocument is what gets archived for a run. Temporary passwords are
// never part of it.
type RunDocument struct {
	StartedAt          time.Time                         `bson:"started_at"`
	FinishedAt         time.Time                         `bson:"finished_at"`
	Success            bool                              `bson:"success"`
	Entities           []monitoring.EntityStats          `bson:"entities"`
	Mappings           map[string]map[string]interface{} `bson:"mappings"`
	OrphanedIdentities []migration.OrphanedIdentity      `bson:"orphaned_identities"`
	Validation         []validation.ValidationResult     `bson:"validation,omitempty"`
	Errors             []string                          `bson:"errors"`
}

// NewRunDocument builds the archive document from a run result. BSON keys
// must be strings, so source ids are formatted.
func NewRunDocument(result *migration.MigrationResult, metrics monitoring.MigrationMetrics, checks []validation.ValidationResult) RunDocument {
	doc := RunDocument{
		StartedAt:          result.StartTime.UTC(),
		FinishedAt:         result.EndTime.UTC(),
		Success:            result.Success,
		Entities:           metrics.Entities,
		Mappings:           make(map[string]map[string]interface{}),
		OrphanedIdentities: result.OrphanedIdentities,
		Validation:         checks,
		Errors:             result.Errors,
	}

	for name, ids := range result.Registry.Tables() {
		mapping := make(map[string]interface{}, len(ids))
		for oldID, newID := range ids {
			mapping[strconv.FormatInt(oldID, 10)] = newID
		}
		doc.Mappings[name] = mapping
	}
	return doc
}

// MongoArchive stores run documents in a MongoDB collection
type MongoArchive struct {
	client     *database.MongoDBClient
	collection string
	logger     logrus.FieldLogger
}

func NewMongoArchive(client *database.MongoDBClient, collection string, logger logrus.FieldLogger) *MongoArchive {
	return &MongoArchive{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

// Save inserts the run document and returns its id
func (a *MongoArchive) Save(ctx context.Context, doc RunDocument) (string, error) {
	id, err := a.client.InsertDocument(ctx, a.collection, doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to archive migration run")
	}
	a.logger.WithFields(logrus.Fields{"collection": a.collection, "run_id": id}).Info("Migration run archived")
	return id, nil
}
