package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"materna-backend/conn"
)

// Store persists report jobs. Implementations must finalise a job at most once.
type Store interface {
	Create(ctx context.Context, jobID, patientID string) error
	Update(ctx context.Context, jobID string, status Status, content string, completedAt time.Time) error
	Get(ctx context.Context, jobID string) (ReportJob, error)
	ListByPatient(ctx context.Context, patientID string) ([]ReportJob, error)
}

// SQLStore keeps jobs in the generated_reports table. Every write is a single
// statement so readers never see status and content out of step.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore returns a Store over a migrated generated_reports table.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// timestamps are kept at microsecond precision, the MySQL DATETIME(6) limit
func stamp(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

func (s *SQLStore) Create(ctx context.Context, jobID, patientID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generated_reports (report_id, patient_id, report_content, status, created_at, completed_at) VALUES (?, ?, NULL, ?, ?, NULL)`,
		jobID, patientID, string(StatusProcessing), conn.Timestamp(stamp(s.now())))
	if conn.IsDuplicateKey(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, jobID)
	}
	if err != nil {
		return fmt.Errorf("insert report job: %w", err)
	}
	return nil
}

// Update moves a processing job to a terminal status. A job can be finalised
// once; later calls get ErrAlreadyFinal and leave the row untouched.
func (s *SQLStore) Update(ctx context.Context, jobID string, status Status, content string, completedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("update report job: invalid target status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE generated_reports SET status = ?, report_content = ?, completed_at = ? WHERE report_id = ? AND status = ?`,
		string(status), content, conn.Timestamp(stamp(completedAt)), jobID, string(StatusProcessing))
	if err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	if n > 0 {
		return nil
	}
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM generated_reports WHERE report_id = ?`, jobID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return fmt.Errorf("%w: %s is %s", ErrAlreadyFinal, jobID, current)
}

const jobColumns = `report_id, patient_id, report_content, status, created_at, completed_at`

func (s *SQLStore) Get(ctx context.Context, jobID string) (ReportJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM generated_reports WHERE report_id = ?`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ReportJob{}, ErrNotFound
	}
	if err != nil {
		return ReportJob{}, fmt.Errorf("get report job: %w", err)
	}
	return j, nil
}

// ListByPatient returns a patient's jobs, newest first.
func (s *SQLStore) ListByPatient(ctx context.Context, patientID string) ([]ReportJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM generated_reports WHERE patient_id = ? ORDER BY created_at DESC, report_id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	defer rows.Close()
	out := []ReportJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list report jobs: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (ReportJob, error) {
	var (
		j         ReportJob
		status    string
		content   sql.NullString
		createdAt conn.NullTime
		doneAt    conn.NullTime
	)
	if err := sc.Scan(&j.ReportID, &j.PatientID, &content, &status, &createdAt, &doneAt); err != nil {
		return ReportJob{}, err
	}
	j.Status = Status(status)
	if content.Valid {
		c := content.String
		j.ReportContent = &c
	}
	j.CreatedAt = createdAt.Time
	j.CompletedAt = doneAt.Ptr()
	return j, nil
}
