package patients

import (
	"encoding/json"
	"time"
)

// Patient is a registered patient profile. JSON names follow the mobile
// client's form fields.
type Patient struct {
	PatientID             string    `json:"patient_id"`
	FirstName             string    `json:"firstName"`
	LastName              string    `json:"lastName"`
	Gender                string    `json:"gender"`
	DOB                   string    `json:"dob"`
	PhoneNumber           string    `json:"phoneNumber"`
	Email                 string    `json:"email"`
	Address               string    `json:"address"`
	EmergencyContact      string    `json:"emergencyContact"`
	EmergencyPhone        string    `json:"emergencyPhone"`
	HeightCM              *float64  `json:"height"`
	PrePregnancyWeight    *float64  `json:"preWeight"`
	CurrentWeight         *float64  `json:"currentWeight"`
	LMP                   string    `json:"lmp"`
	DueDate               string    `json:"dueDate"`
	Gravida               *int      `json:"gravida"`
	Para                  *int      `json:"para"`
	BloodGroup            string    `json:"bloodGroup"`
	PreexistingConditions string    `json:"preexistingConditions"`
	PrimaryProvider       string    `json:"primaryProvider"`
	PreferredHospital     string    `json:"preferredHospital"`
	RegistrationDate      time.Time `json:"registration_date"`
	LastUpdated           time.Time `json:"last_updated"`
}

// MedicalReport is an uploaded or generated report attached to a patient.
type MedicalReport struct {
	ReportID        string          `json:"id"`
	PatientID       string          `json:"patient_id"`
	Type            string          `json:"type"`
	Category        string          `json:"category"`
	Date            string          `json:"date"`
	FileURL         string          `json:"fileUrl"`
	Notes           string          `json:"notes"`
	AnalysisResults json.RawMessage `json:"analysisResults"`
	CreatedAt       time.Time       `json:"created_at"`
}
