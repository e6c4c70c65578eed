package conn

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestNullTimeScan(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	inputs := []any{
		want,
		want.Format(time.RFC3339Nano),
		[]byte("2024-03-01 10:30:00"),
	}
	for _, in := range inputs {
		var nt NullTime
		if err := nt.Scan(in); err != nil {
			t.Fatalf("Scan(%v): %v", in, err)
		}
		if !nt.Valid || !nt.Time.Equal(want) {
			t.Errorf("Scan(%v) = %v valid=%t; want %v", in, nt.Time, nt.Valid, want)
		}
	}

	var nt NullTime
	if err := nt.Scan(nil); err != nil || nt.Valid || nt.Ptr() != nil {
		t.Fatalf("Scan(nil) should give invalid time, got %+v err=%v", nt, err)
	}
	if err := nt.Scan("not a time"); err == nil {
		t.Fatal("expected error for garbage timestamp")
	}
}

func TestTimestampRoundTripsAndSorts(t *testing.T) {
	a := time.Date(2024, 3, 1, 10, 30, 5, 100000000, time.UTC)
	b := time.Date(2024, 3, 1, 10, 30, 5, 120000000, time.UTC)
	if Timestamp(a) >= Timestamp(b) {
		t.Fatalf("%q should sort before %q", Timestamp(a), Timestamp(b))
	}
	var nt NullTime
	if err := nt.Scan(Timestamp(b)); err != nil || !nt.Time.Equal(b) {
		t.Fatalf("Scan(%q) = %v, %v", Timestamp(b), nt.Time, err)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if IsDuplicateKey(nil) {
		t.Fatal("nil is not a duplicate")
	}
	if !IsDuplicateKey(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})) {
		t.Fatal("mysql 1062 should be detected")
	}
	if IsDuplicateKey(&mysql.MySQLError{Number: 1146}) {
		t.Fatal("mysql 1146 is not a duplicate")
	}
	if IsDuplicateKey(errors.New("boom")) {
		t.Fatal("plain error is not a duplicate")
	}

	db, err := NewSQLite(filepath.Join(t.TempDir(), "dup.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE t (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO t (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = db.Exec(`INSERT INTO t (id) VALUES ('a')`)
	if !IsDuplicateKey(err) {
		t.Fatalf("sqlite primary key violation not detected: %v", err)
	}
}
