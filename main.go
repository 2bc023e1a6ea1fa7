package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/config"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/migration"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/monitoring"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/report"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/supabase"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/validation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "school-migrator",
	Short: "Migrates the school database from MySQL to Supabase in one sequential run",
	// SilenceErrors allows us to explicitly log the error returned from rootCmd below.
	SilenceErrors: true,
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		cfg, err := loadConfig(command)
		if err != nil {
			return err
		}

		logLevel, _ := command.Flags().GetString("log-level")
		logger, err := newLogger(logLevel, os.Stderr)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, logger, os.Stdout)
	},
}

func init() {
	rootCmd.Flags().String("config", "config.yaml", "Path to an optional yaml config file.")
	rootCmd.Flags().String("env-file", ".env", "Path to an optional dotenv file.")
	rootCmd.Flags().Bool("verify", false, "Compare destination row counts before and after the run.")
	rootCmd.Flags().String("mappings-out", "", "Where to write the id mappings (default migration_mappings.json).")
	rootCmd.Flags().String("passwords-out", "", "Where to write the temporary passwords (default temp_passwords.json).")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("migration could not start")
		os.Exit(1)
	}
}

// loadConfig layers defaults, the yaml file, the environment and the flags
func loadConfig(command *cobra.Command) (*config.Config, error) {
	envFile, _ := command.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	configPath, _ := command.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if verify, _ := command.Flags().GetBool("verify"); verify {
		cfg.Verify.Enabled = true
	}
	if mappings, _ := command.Flags().GetString("mappings-out"); mappings != "" {
		cfg.Output.MappingsFile = mappings
	}
	if passwords, _ := command.Flags().GetString("passwords-out"); passwords != "" {
		cfg.Output.PasswordsFile = passwords
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}

// run connects both ends and migrates. Only connection failures are
// returned; everything after that is logged and reported.
func run(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, out io.Writer) error {
	logger.Info("Connecting to MySQL...")
	source := database.NewMySQLClientFromConfig(cfg)
	if err := source.Connect(ctx); err != nil {
		return errors.Wrap(err, "failed to connect to MySQL")
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close MySQL connection")
			return
		}
		logger.Info("Database connections closed")
	}()
	logger.Info("Connected to MySQL")

	logger.Info("Connecting to Supabase...")
	client := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.Supabase.Timeout, logger)
	if err := client.Probe(ctx, migration.TableSchools); err != nil {
		return errors.Wrapf(err, "failed to connect to Supabase at %s", cfg.Supabase.URL)
	}
	logger.Info("Connected to Supabase")

	migrate(ctx, cfg, source, client, logger, out)
	return nil
}

// migrate runs the pipeline and always produces the artifacts and the
// summary, even when the run stopped early
func migrate(ctx context.Context, cfg *config.Config, source database.SourceClient, client *supabase.Client, logger logrus.FieldLogger, out io.Writer) *migration.MigrationResult {
	tracker := monitoring.NewProgressTracker()

	var validator *validation.DestinationValidator
	var preChecks []validation.ValidationResult
	if cfg.Verify.Enabled {
		counter, closeCounter := rowCounter(ctx, cfg, client, logger)
		defer closeCounter()

		validator = validation.NewDestinationValidator(counter, logger)
		start := time.Now()
		preChecks = validator.PreMigrationValidation(ctx, migration.Tables)
		validation.GenerateValidationSummary(preChecks, start).Print(out, validation.PhasePre)
	}

	migrator := migration.NewMigrator(client, tracker, logger)
	engine := migration.NewMigrationEngine(source, migrator, tracker, logger)

	result, err := engine.ExecuteMigration(ctx)
	if err != nil {
		logger.WithError(err).Error("Migration failed")
	}

	if err := report.WriteMappings(cfg.Output.MappingsFile, result.Registry); err != nil {
		logger.WithError(err).Error("Failed to save id mappings")
	}
	if err := report.WritePasswords(cfg.Output.PasswordsFile, result.TempPasswords); err != nil {
		logger.WithError(err).Error("Failed to save temporary passwords")
	}

	var postChecks []validation.ValidationResult
	if validator != nil {
		start := time.Now()
		postChecks = validator.PostMigrationValidation(context.WithoutCancel(ctx), migration.Tables, preChecks, result.Migrated)
		validation.GenerateValidationSummary(postChecks, start).Print(out, validation.PhasePost)
	}

	if cfg.Archive.MongoDBURI != "" {
		archiveRun(context.WithoutCancel(ctx), cfg, report.NewRunDocument(result, tracker.GetMetrics(), postChecks), logger)
	}

	tracker.PrintFinalSummary(out)
	report.PrintNextSteps(out, cfg.Output.MappingsFile, cfg.Output.PasswordsFile, result.OrphanedIdentities)
	return result
}

// rowCounter prefers a direct Postgres connection and falls back to
// PostgREST counts
func rowCounter(ctx context.Context, cfg *config.Config, client *supabase.Client, logger logrus.FieldLogger) (database.RowCounter, func()) {
	if cfg.Verify.DatabaseURL == "" {
		return client, func() {}
	}

	pg := database.NewPostgresClient(cfg.Verify.DatabaseURL)
	if err := pg.Connect(ctx); err != nil {
		logger.WithError(err).Warn("Failed to connect to the Supabase database, counting through the REST API instead")
		return client, func() {}
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close the Supabase database connection")
		}
	}
}

func archiveRun(ctx context.Context, cfg *config.Config, doc report.RunDocument, logger logrus.FieldLogger) {
	mongoClient := database.NewMongoDBClient(cfg.Archive.MongoDBURI, cfg.Archive.Database)
	if err := mongoClient.Connect(ctx); err != nil {
		logger.WithError(err).Warn("Failed to connect to MongoDB, run not archived")
		return
	}
	defer mongoClient.Close()

	if _, err := report.NewMongoArchive(mongoClient, cfg.Archive.Collection, logger).Save(ctx, doc); err != nil {
		logger.WithError(err).Warn("Run not archived")
	}
}
