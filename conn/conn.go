package conn

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ncruces/go-sqlite3"
)

// Dialect names the SQL flavour behind a *sql.DB.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// Options selects and configures the driver used by Open.
type Options struct {
	Driver     string
	MySQL      MySQLOptions
	SQLitePath string
}

// Open connects to the configured database.
func Open(o Options) (*sql.DB, Dialect, error) {
	switch o.Driver {
	case "", string(MySQL):
		db, err := NewMySQL(o.MySQL)
		return db, MySQL, err
	case string(SQLite), "sqlite3":
		db, err := NewSQLite(o.SQLitePath)
		return db, SQLite, err
	default:
		return nil, "", fmt.Errorf("unsupported DB_DRIVER %q", o.Driver)
	}
}

// IsDuplicateKey reports whether err is a primary key or unique constraint
// violation from either supported driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY) || errors.Is(err, sqlite3.CONSTRAINT_UNIQUE)
}

// timestampLayout is fixed width so text columns sort chronologically.
const timestampLayout = "2006-01-02 15:04:05.000000"

// Timestamp encodes t for a DATETIME(6) or TEXT timestamp column.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// NullTime scans timestamp columns regardless of whether the driver hands
// back a time.Time (MySQL with parseTime) or text (SQLite).
type NullTime struct {
	Time  time.Time
	Valid bool
}

func (n *NullTime) Scan(v any) error {
	switch t := v.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = t.UTC(), true
		return nil
	case []byte:
		return n.parse(string(t))
	case string:
		return n.parse(t)
	case int64:
		n.Time, n.Valid = time.Unix(t, 0).UTC(), true
		return nil
	}
	return fmt.Errorf("conn: cannot scan %T into NullTime", v)
}

func (n *NullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("conn: unrecognised timestamp %q", s)
}

// Ptr returns nil for NULL, otherwise a pointer to the time.
func (n NullTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
