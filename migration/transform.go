package migration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/database"
	"github.com/SusheelSathyaraj/SchoolDataMigrator/supabase"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	timestampLayout = "2006-01-02T15:04:05.999999Z07:00"
	dateLayout      = "2006-01-02"
	clockLayout     = "15:04:05"
)

// Text returns the textual form of a source value; ok is false for NULL
func Text(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case time.Time:
		return val.UTC().Format(timestampLayout), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// TextOrNil maps NULL and the empty string to nil
func TextOrNil(v interface{}) interface{} {
	s, ok := Text(v)
	if !ok || s == "" {
		return nil
	}
	return s
}

// TextOr maps NULL and the empty string to fallback
func TextOr(v interface{}, fallback string) string {
	s, ok := Text(v)
	if !ok || s == "" {
		return fallback
	}
	return s
}

// Int64 reads an integer column; ok is false for NULL or unparsable values
func Int64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		if val == float64(int64(val)) {
			return int64(val), true
		}
	case string, []byte:
		s, _ := Text(val)
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// Bool reads a tinyint(1) or boolean column; NULL is false
func Bool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	case string, []byte:
		s, _ := Text(val)
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && b
	default:
		n, ok := Int64(val)
		return ok && n != 0
	}
}

// Timestamp renders a datetime as RFC 3339 text in UTC
func Timestamp(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return val.UTC().Format(timestampLayout)
	default:
		return TextOrNil(v)
	}
}

// Date renders a date column as YYYY-MM-DD
func Date(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return val.Format(dateLayout)
	default:
		return TextOrNil(v)
	}
}

// Clock renders a time-of-day column as HH:MM:SS
func Clock(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return val.Format(clockLayout)
	case time.Duration:
		h := int64(val / time.Hour)
		m := int64(val%time.Hour) / int64(time.Minute)
		s := int64(val%time.Minute) / int64(time.Second)
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	default:
		return TextOrNil(v)
	}
}

// Money renders a monetary value as decimal text keeping its scale, so
// "1500.50" stays "1500.50". NULL and empty text are nil.
func Money(v interface{}) (interface{}, error) {
	var d decimal.Decimal
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		d = decimal.NewFromFloat(val)
	case float32:
		d = decimal.NewFromFloat32(val)
	case int64:
		d = decimal.NewFromInt(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	default:
		s, _ := Text(val)
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid monetary value %q", s)
		}
		d = parsed
	}

	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp), nil
	}
	return d.String(), nil
}

// Float reads a numeric column as a float; NULL and empty text are nil
func Float(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	default:
		if n, ok := Int64(val); ok {
			return float64(n), nil
		}
		s, _ := Text(val)
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid numeric value %q", s)
		}
		return f, nil
	}
}

// JSONMap parses a JSON-bearing column into a map. Anything that is not a
// JSON object, malformed text included, becomes an empty map.
func JSONMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}

	s, ok := Text(v)
	if !ok || strings.TrimSpace(s) == "" {
		return map[string]interface{}{}
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(s)))
	decoder.UseNumber()

	var m map[string]interface{}
	if err := decoder.Decode(&m); err != nil || m == nil {
		return map[string]interface{}{}
	}
	if _, err := decoder.Token(); err != io.EOF {
		return map[string]interface{}{}
	}
	return m
}

// FileName keeps the last path segment of a stored media path
func FileName(v interface{}) interface{} {
	s, ok := Text(v)
	if !ok || s == "" {
		return nil
	}
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// recordBuilder collects destination fields from a source row and remembers
// the first conversion error
type recordBuilder struct {
	row    database.Row
	record supabase.Record
	err    error
}

func newRecord(row database.Row) *recordBuilder {
	return &recordBuilder{row: row, record: supabase.Record{}}
}

func (b *recordBuilder) set(key string, value interface{}) {
	b.record[key] = value
}

// copy passes the column through; bytes become text and NULL stays nil
func (b *recordBuilder) copy(col string) {
	switch val := b.row[col].(type) {
	case []byte:
		b.record[col] = string(val)
	case time.Time:
		b.record[col] = Timestamp(val)
	default:
		b.record[col] = val
	}
}

func (b *recordBuilder) textOrNil(col string) {
	b.record[col] = TextOrNil(b.row[col])
}

func (b *recordBuilder) textOrEmpty(col string) {
	b.record[col] = TextOr(b.row[col], "")
}

func (b *recordBuilder) textOr(col, fallback string) {
	b.record[col] = TextOr(b.row[col], fallback)
}

func (b *recordBuilder) boolean(col string) {
	b.record[col] = Bool(b.row[col])
}

func (b *recordBuilder) date(col string) {
	b.record[col] = Date(b.row[col])
}

func (b *recordBuilder) clock(col string) {
	b.record[col] = Clock(b.row[col])
}

func (b *recordBuilder) timestamp(col string) {
	b.record[col] = Timestamp(b.row[col])
}

func (b *recordBuilder) timestamps() {
	b.timestamp("created_at")
	b.timestamp("updated_at")
}

func (b *recordBuilder) money(col string) {
	value, err := Money(b.row[col])
	if err != nil {
		b.fail(col, err)
	}
	b.record[col] = value
}

func (b *recordBuilder) moneyOr(col, fallback string) {
	b.money(col)
	if b.record[col] == nil {
		b.record[col] = fallback
	}
}

func (b *recordBuilder) float(col string) {
	value, err := Float(b.row[col])
	if err != nil {
		b.fail(col, err)
	}
	b.record[col] = value
}

func (b *recordBuilder) jsonMap(col string) {
	b.record[col] = JSONMap(b.row[col])
}

func (b *recordBuilder) fail(col string, err error) {
	if b.err == nil {
		b.err = errors.Wrapf(err, "column %s", col)
	}
}

func (b *recordBuilder) build() (supabase.Record, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.record, nil
}
