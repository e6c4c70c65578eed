package migrations

import (
	"database/sql"
	"fmt"
	"log"

	"materna-backend/conn"
)

// Migrate creates required tables if they do not exist.
func Migrate(db *sql.DB, dialect conn.Dialect) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	var stmts []string
	switch dialect {
	case conn.MySQL:
		stmts = mysqlSchema
	case conn.SQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unknown dialect %q", dialect)
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Printf("[migrations] schema ready dialect=%s tables=%d", dialect, len(stmts))
	return nil
}

// generated_reports deliberately has no foreign key to patients: the async
// endpoint accepts patient payloads that were never registered here.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id VARCHAR(50) PRIMARY KEY,
		username VARCHAR(191) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		patient_id VARCHAR(50) NOT NULL UNIQUE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS patients (
		patient_id VARCHAR(50) PRIMARY KEY,
		first_name VARCHAR(100),
		last_name VARCHAR(100),
		gender VARCHAR(20),
		dob VARCHAR(10),
		contact_number VARCHAR(20),
		email VARCHAR(191),
		address TEXT,
		emergency_contact VARCHAR(100),
		emergency_number VARCHAR(20),
		height_cm DOUBLE NULL,
		pre_pregnancy_weight DOUBLE NULL,
		current_weight DOUBLE NULL,
		lmp VARCHAR(10),
		due_date VARCHAR(10),
		gravida INT NULL,
		para INT NULL,
		blood_group VARCHAR(5),
		preexisting_conditions TEXT,
		healthcare_provider VARCHAR(100),
		hospital VARCHAR(100),
		registration_date DATETIME(6) NOT NULL,
		last_updated DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS medical_reports (
		report_id VARCHAR(64) PRIMARY KEY,
		patient_id VARCHAR(50) NOT NULL,
		type VARCHAR(50) NOT NULL,
		category VARCHAR(100) NOT NULL,
		date VARCHAR(32) NOT NULL,
		file_url TEXT NOT NULL,
		notes TEXT,
		analysis_results MEDIUMTEXT,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_medical_reports_patient (patient_id),
		FOREIGN KEY (patient_id) REFERENCES patients(patient_id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS generated_reports (
		report_id VARCHAR(64) PRIMARY KEY,
		patient_id VARCHAR(50) NOT NULL,
		report_content MEDIUMTEXT NULL,
		status VARCHAR(20) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		completed_at DATETIME(6) NULL,
		INDEX idx_generated_reports_patient (patient_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		patient_id TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);`,
	`CREATE TABLE IF NOT EXISTS patients (
		patient_id TEXT PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		gender TEXT,
		dob TEXT,
		contact_number TEXT,
		email TEXT,
		address TEXT,
		emergency_contact TEXT,
		emergency_number TEXT,
		height_cm REAL NULL,
		pre_pregnancy_weight REAL NULL,
		current_weight REAL NULL,
		lmp TEXT,
		due_date TEXT,
		gravida INTEGER NULL,
		para INTEGER NULL,
		blood_group TEXT,
		preexisting_conditions TEXT,
		healthcare_provider TEXT,
		hospital TEXT,
		registration_date TEXT NOT NULL,
		last_updated TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS medical_reports (
		report_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL REFERENCES patients(patient_id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		date TEXT NOT NULL,
		file_url TEXT NOT NULL,
		notes TEXT,
		analysis_results TEXT,
		created_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_medical_reports_patient ON medical_reports(patient_id);`,
	`CREATE TABLE IF NOT EXISTS generated_reports (
		report_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		report_content TEXT NULL,
		status TEXT NOT NULL CHECK(status IN ('processing', 'completed', 'failed')),
		created_at TEXT NOT NULL,
		completed_at TEXT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_generated_reports_patient ON generated_reports(patient_id);`,
}
