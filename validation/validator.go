package validation

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
)

const (
	PhasePre  = "Pre-Migration"
	PhasePost = "Post-Migration"
)

// Represents the result of the validation check for one destination table
type ValidationResult struct {
	TableName    string    `json:"table_name" bson:"table_name"`
	IsValid      bool      `json:"is_valid" bson:"is_valid"`
	ErrorMessage string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
	Counted      bool      `json:"counted" bson:"counted"`
	RowCount     int64     `json:"row_count" bson:"row_count"`
	Expected     int64     `json:"expected" bson:"expected"`
	TimeStamp    time.Time `json:"timestamp" bson:"timestamp"`
}

// Handles pre and post migration checks by counting destination rows
type DestinationValidator struct {
	Counter database.RowCounter
	logger  logrus.FieldLogger
}

// Creating a new validator instance
func NewDestinationValidator(counter database.RowCounter, logger logrus.FieldLogger) *DestinationValidator {
	return &DestinationValidator{
		Counter: counter,
		logger:  logger,
	}
}

// PreMigrationValidation captures the row count of every table. A table
// that already holds rows is flagged, since a run does not deduplicate.
func (v *DestinationValidator) PreMigrationValidation(ctx context.Context, tables []string) []ValidationResult {
	v.logger.Info("Starting pre-migration validation")

	results := make([]ValidationResult, 0, len(tables))
	for _, table := range tables {
		result := ValidationResult{
			TableName: table,
			TimeStamp: time.Now(),
		}

		count, err := v.Counter.CountRows(ctx, table)
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("failed to count rows: %v", err)
			results = append(results, result)
			continue
		}
		result.Counted = true
		result.RowCount = count

		if count > 0 {
			result.ErrorMessage = fmt.Sprintf("destination already has %d rows, migrated rows will be added as duplicates", count)
			v.logger.WithField("table", table).Warn(result.ErrorMessage)
		} else {
			result.IsValid = true
		}
		results = append(results, result)
	}
	return results
}

// PostMigrationValidation checks that every table grew by exactly the
// number of rows the run reported as migrated
func (v *DestinationValidator) PostMigrationValidation(ctx context.Context, tables []string, preValidationResults []ValidationResult, migrated map[string]int) []ValidationResult {
	v.logger.Info("Starting post-migration validation")

	//creating a map for quick lookup of pre-validation results
	preResultMap := make(map[string]ValidationResult)
	for _, result := range preValidationResults {
		preResultMap[result.TableName] = result
	}

	results := make([]ValidationResult, 0, len(tables))
	for _, table := range tables {
		result := ValidationResult{
			TableName: table,
			TimeStamp: time.Now(),
		}

		count, err := v.Counter.CountRows(ctx, table)
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("failed to count rows: %v", err)
			results = append(results, result)
			continue
		}
		result.Counted = true
		result.RowCount = count

		preResult, exists := preResultMap[table]
		if !exists || !preResult.Counted {
			result.ErrorMessage = "no pre-migration count for table"
			results = append(results, result)
			continue
		}

		result.Expected = preResult.RowCount + int64(migrated[table])
		if result.RowCount != result.Expected {
			result.ErrorMessage = fmt.Sprintf("row count mismatch, expected %d, got %d", result.Expected, result.RowCount)
			v.logger.WithField("table", table).Warn(result.ErrorMessage)
			results = append(results, result)
			continue
		}

		result.IsValid = true
		results = append(results, result)
	}
	return results
}

// struct for validation result summary
type ValidationSummary struct {
	TotalTables    int
	ValidTables    int
	InvalidTables  int
	TotalRows      int64
	ValidationTime time.Duration
	Results        []ValidationResult
	Errors         []string
}

// creating a summary of the validation result
func GenerateValidationSummary(results []ValidationResult, startTime time.Time) ValidationSummary {
	summary := ValidationSummary{
		TotalTables:    len(results),
		ValidationTime: time.Since(startTime),
		Results:        results,
		Errors:         make([]string, 0),
	}

	for _, result := range results {
		summary.TotalRows += result.RowCount

		if result.IsValid {
			summary.ValidTables++
		} else {
			summary.InvalidTables++
			summary.Errors = append(summary.Errors, fmt.Sprintf("Table %s: %s", result.TableName, result.ErrorMessage))
		}
	}
	return summary
}

// printing the formatted summary
func (s ValidationSummary) Print(w io.Writer, phase string) {
	fmt.Fprintf(w, "\n==%s Validation Summary==\n", phase)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Rows", "Expected", "Valid"})
	table.SetAutoFormatHeaders(false)
	for _, result := range s.Results {
		expected := "-"
		if phase == PhasePost && result.Counted {
			expected = strconv.FormatInt(result.Expected, 10)
		}
		table.Append([]string{result.TableName, strconv.FormatInt(result.RowCount, 10), expected, strconv.FormatBool(result.IsValid)})
	}
	table.Render()

	fmt.Fprintf(w, "Valid Tables: %d/%d\n", s.ValidTables, s.TotalTables)
	fmt.Fprintf(w, "Validation Time: %v\n", s.ValidationTime.Round(time.Millisecond))

	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range s.Errors {
			fmt.Fprintf(w, "- %s\n", err)
		}
	}
}
