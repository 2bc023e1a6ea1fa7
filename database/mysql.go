package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/config"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

type MySQLClient struct {
	User     string
	Password string
	Host     string
	Port     int
	DBName   string
	DB       *sql.DB
}

// create a MySQL client using manual parameters, (for tests)
func NewMySQLClient(user, password, host string, port int, dbname string) *MySQLClient {
	return &MySQLClient{
		User:     user,
		Password: password,
		Host:     host,
		Port:     port,
		DBName:   dbname,
	}
}

// create a new MySQL client using config file
func NewMySQLClientFromConfig(cfg *config.Config) *MySQLClient {
	return &MySQLClient{
		User:     cfg.MySQL.User,
		Password: cfg.MySQL.Password,
		Host:     cfg.MySQL.Host,
		Port:     cfg.MySQL.Port,
		DBName:   cfg.MySQL.DBName,
	}
}

// NewMySQLClientFromDB wraps an already open handle, used with sqlmock
func NewMySQLClientFromDB(db *sql.DB) *MySQLClient {
	return &MySQLClient{DB: db}
}

// DSN returns the driver connection string for the client parameters
func (c *MySQLClient) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// to connect with the MySQL DB
func (c *MySQLClient) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", c.DSN())
	if err != nil {
		return errors.Wrap(err, "failed to open MySQL connection")
	}

	// the migration is sequential, one connection is enough
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return errors.Wrapf(err, "failed to ping MySQL at %s:%d", c.Host, c.Port)
	}

	c.DB = db
	return nil
}

// closes the database connection
func (c *MySQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// FetchRows runs a read-only query and returns every row as a map
func (c *MySQLClient) FetchRows(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	if c.DB == nil {
		return nil, errors.New("db connection not established")
	}

	rows, err := c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows converts a result set into rows keyed by column name
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get column names")
	}

	var results []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuesPtr := make([]interface{}, len(columns))
		for i := range values {
			valuesPtr[i] = &values[i]
		}

		if err := rows.Scan(valuesPtr...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		//convert any []byte to a string for storing
		row := make(Row, len(columns))
		for i, colName := range columns {
			if b, ok := values[i].([]byte); ok {
				row[colName] = string(b)
			} else {
				row[colName] = values[i]
			}
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during the row iteration")
	}
	return results, nil
}
