// Package supabase wraps the two Supabase surfaces the migration writes to:
// the PostgREST table API (postgrest-go) and the GoTrue admin API
// (gotrue-go). Every request is authenticated with the service role key.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"
)

const (
	restPath = "/rest/v1"
	authPath = "/auth/v1"
	schema   = "public"
)

// Record is one destination row as sent to or returned by PostgREST
type Record map[string]interface{}

// Client is an administrative session against one Supabase project
type Client struct {
	rest    *postgrest.Client
	auth    gotrue.Client
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewClient creates a client for the project at baseURL
func NewClient(baseURL, serviceKey string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	rest := postgrest.NewClient(baseURL+restPath, schema, map[string]string{
		"apikey":        serviceKey,
		"Authorization": "Bearer " + serviceKey,
	})

	// the project reference is unused once a custom URL is set
	auth := gotrue.New("", serviceKey).
		WithCustomGoTrueURL(baseURL + authPath).
		WithToken(serviceKey).
		WithClient(http.Client{Timeout: timeout})

	return &Client{
		rest:    rest,
		auth:    auth,
		timeout: timeout,
		logger:  logger,
	}
}

// Probe runs a one row read against table to confirm the project is reachable
// and the key is accepted.
func (c *Client) Probe(ctx context.Context, table string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.WithField("table", table).Debug("Probing table")
	if _, _, err := c.rest.From(table).Select("id", "", false).Limit(1, "").ExecuteWithContext(ctx); err != nil {
		return restError(err, "failed to probe table "+table)
	}
	return nil
}

// Insert writes one row into table and returns the row as stored, including
// the primary key the platform assigned.
func (c *Client) Insert(ctx context.Context, table string, record Record) (Record, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.WithField("table", table).Debug("Inserting record")
	body, _, err := c.rest.From(table).Insert(record, false, "", "representation", "").ExecuteWithContext(ctx)
	if err != nil {
		return nil, restError(err, "failed to insert into "+table)
	}

	var rows []Record
	if err := decodeJSON(body, &rows); err != nil {
		return nil, errors.Wrapf(err, "failed to decode insert response for %s", table)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("insert into %s returned no rows", table)
	}
	return rows[0], nil
}

// CountRows returns the exact number of rows in table using the count the
// platform reports in the Content-Range header.
func (c *Client) CountRows(ctx context.Context, table string) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.WithField("table", table).Debug("Counting rows")
	_, count, err := c.rest.From(table).Select("id", "exact", true).ExecuteWithContext(ctx)
	if err != nil {
		return 0, restError(err, "failed to count rows of "+table)
	}
	return count, nil
}

// withTimeout bounds a single PostgREST call; the GoTrue client carries the
// timeout on its http.Client instead
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// decodeJSON keeps numbers as json.Number so bigint ids survive unchanged
func decodeJSON(data []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(v)
}
