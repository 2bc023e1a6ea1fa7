package database

import "context"

// Row is one source record keyed by column name
type Row map[string]interface{}

// SourceClient is the read side of the migration, kept as an interface for
// ease with mock tests
type SourceClient interface {
	Connect(ctx context.Context) error
	Close() error
	FetchRows(ctx context.Context, query string, args ...interface{}) ([]Row, error)
}

// RowCounter counts the rows of a destination table
type RowCounter interface {
	CountRows(ctx context.Context, table string) (int64, error)
}
