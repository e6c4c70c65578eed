package patients

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"materna-backend/conn"
)

var (
	ErrNotFound        = errors.New("patient not found")
	ErrDuplicateReport = errors.New("medical report already exists")
)

type Repository struct {
	db      *sql.DB
	dialect conn.Dialect
	now     func() time.Time
}

func NewRepository(db *sql.DB, dialect conn.Dialect) *Repository {
	return &Repository{db: db, dialect: dialect, now: time.Now}
}

const patientColumns = `patient_id, first_name, last_name, gender, dob, contact_number, email, address,
	emergency_contact, emergency_number, height_cm, pre_pregnancy_weight, current_weight,
	lmp, due_date, gravida, para, blood_group, preexisting_conditions, healthcare_provider, hospital,
	registration_date, last_updated`

// replaced on conflict, registration_date is kept from the first save
var upsertSet = []string{
	"first_name", "last_name", "gender", "dob", "contact_number", "email", "address",
	"emergency_contact", "emergency_number", "height_cm", "pre_pregnancy_weight", "current_weight",
	"lmp", "due_date", "gravida", "para", "blood_group", "preexisting_conditions",
	"healthcare_provider", "hospital", "last_updated",
}

func (r *Repository) upsertSQL() string {
	q := `INSERT INTO patients (` + patientColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if r.dialect == conn.SQLite {
		q += ` ON CONFLICT(patient_id) DO UPDATE SET `
		for i, c := range upsertSet {
			if i > 0 {
				q += ", "
			}
			q += c + " = excluded." + c
		}
		return q
	}
	q += ` ON DUPLICATE KEY UPDATE `
	for i, c := range upsertSet {
		if i > 0 {
			q += ", "
		}
		q += c + " = VALUES(" + c + ")"
	}
	return q
}

// Save replaces the stored profile of p.PatientID with p.
func (r *Repository) Save(ctx context.Context, p Patient) (Patient, error) {
	now := r.now().UTC().Truncate(time.Microsecond)
	p.RegistrationDate, p.LastUpdated = now, now
	_, err := r.db.ExecContext(ctx, r.upsertSQL(),
		p.PatientID, p.FirstName, p.LastName, p.Gender, p.DOB, p.PhoneNumber, p.Email, p.Address,
		p.EmergencyContact, p.EmergencyPhone, p.HeightCM, p.PrePregnancyWeight, p.CurrentWeight,
		p.LMP, p.DueDate, p.Gravida, p.Para, p.BloodGroup, p.PreexistingConditions, p.PrimaryProvider, p.PreferredHospital,
		conn.Timestamp(p.RegistrationDate), conn.Timestamp(p.LastUpdated))
	if err != nil {
		return Patient{}, fmt.Errorf("save patient: %w", err)
	}
	return r.Get(ctx, p.PatientID)
}

func (r *Repository) Get(ctx context.Context, patientID string) (Patient, error) {
	var (
		p                                                  Patient
		gender, dob, phone, email, address, ec, ep, due    sql.NullString
		blood, conditions, provider, hospital, first, last sql.NullString
		lmp                                                sql.NullString
		height, preWeight, curWeight                       sql.NullFloat64
		gravida, para                                      sql.NullInt64
		registered, updated                                conn.NullTime
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE patient_id = ?`, patientID).Scan(
		&p.PatientID, &first, &last, &gender, &dob, &phone, &email, &address,
		&ec, &ep, &height, &preWeight, &curWeight,
		&lmp, &due, &gravida, &para, &blood, &conditions, &provider, &hospital,
		&registered, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Patient{}, ErrNotFound
	}
	if err != nil {
		return Patient{}, fmt.Errorf("get patient: %w", err)
	}
	p.FirstName, p.LastName, p.Gender, p.DOB = first.String, last.String, gender.String, dob.String
	p.PhoneNumber, p.Email, p.Address = phone.String, email.String, address.String
	p.EmergencyContact, p.EmergencyPhone = ec.String, ep.String
	p.LMP, p.DueDate, p.BloodGroup = lmp.String, due.String, blood.String
	p.PreexistingConditions, p.PrimaryProvider, p.PreferredHospital = conditions.String, provider.String, hospital.String
	p.HeightCM = floatPtr(height)
	p.PrePregnancyWeight = floatPtr(preWeight)
	p.CurrentWeight = floatPtr(curWeight)
	p.Gravida = intPtr(gravida)
	p.Para = intPtr(para)
	p.RegistrationDate, p.LastUpdated = registered.Time, updated.Time
	return p, nil
}

func (r *Repository) Exists(ctx context.Context, patientID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM patients WHERE patient_id = ?`, patientID).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup patient: %w", err)
	}
	return n > 0, nil
}

// AddReport stores a medical report. AnalysisResults defaults to {}.
func (r *Repository) AddReport(ctx context.Context, m MedicalReport) (MedicalReport, error) {
	if len(m.AnalysisResults) == 0 {
		m.AnalysisResults = json.RawMessage(`{}`)
	}
	m.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO medical_reports (report_id, patient_id, type, category, date, file_url, notes, analysis_results, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ReportID, m.PatientID, m.Type, m.Category, m.Date, m.FileURL, m.Notes, string(m.AnalysisResults), conn.Timestamp(m.CreatedAt))
	if conn.IsDuplicateKey(err) {
		return MedicalReport{}, ErrDuplicateReport
	}
	if err != nil {
		return MedicalReport{}, fmt.Errorf("insert medical report: %w", err)
	}
	return m, nil
}

// Reports lists a patient's medical reports in insertion order.
func (r *Repository) Reports(ctx context.Context, patientID string) ([]MedicalReport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT report_id, patient_id, type, category, date, file_url, notes, analysis_results, created_at FROM medical_reports WHERE patient_id = ? ORDER BY created_at, report_id`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list medical reports: %w", err)
	}
	defer rows.Close()
	out := []MedicalReport{}
	for rows.Next() {
		var (
			m         MedicalReport
			notes     sql.NullString
			analysis  sql.NullString
			createdAt conn.NullTime
		)
		if err := rows.Scan(&m.ReportID, &m.PatientID, &m.Type, &m.Category, &m.Date, &m.FileURL, &notes, &analysis, &createdAt); err != nil {
			return nil, fmt.Errorf("scan medical report: %w", err)
		}
		m.Notes = notes.String
		if analysis.Valid && json.Valid([]byte(analysis.String)) {
			m.AnalysisResults = json.RawMessage(analysis.String)
		}
		m.CreatedAt = createdAt.Time
		out = append(out, m)
	}
	return out, rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
