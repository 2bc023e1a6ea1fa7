package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresClient talks directly to the Supabase Postgres database. It is only
// used to verify row counts after a run, never to write.
type PostgresClient struct {
	URL    string
	Schema string
	DB     *sql.DB
}

func NewPostgresClient(url string) *PostgresClient {
	return &PostgresClient{
		URL:    url,
		Schema: "public",
	}
}

// connect to Postgresql database
func (p *PostgresClient) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", p.URL)
	if err != nil {
		return errors.Wrap(err, "failed to open postgresql connection")
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return errors.Wrap(err, "failed to ping postgresql database")
	}
	p.DB = db
	return nil
}

// Close the database connection
func (p *PostgresClient) Close() error {
	if p.DB != nil {
		return p.DB.Close()
	}
	return nil
}

// CountRows returns the number of rows in schema.table
func (p *PostgresClient) CountRows(ctx context.Context, table string) (int64, error) {
	if p.DB == nil {
		return 0, errors.New("database connection not established")
	}
	if !identifierPattern.MatchString(table) {
		return 0, errors.Errorf("invalid table name %q", table)
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s",
		pq.QuoteIdentifier(p.Schema), pq.QuoteIdentifier(table))

	var count int64
	if err := p.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "failed to count rows of %s", table)
	}
	return count, nil
}
