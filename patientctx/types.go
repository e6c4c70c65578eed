package patientctx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Dataset is the patient_data payload: patient id -> entry.
type Dataset map[string]Entry

// Entry holds everything known about one patient.
type Entry struct {
	PersonalInfo  *PersonalInfo  `json:"personal_info" validate:"required"`
	Questionnaire *Questionnaire `json:"questionnaire" validate:"required"`
	RiskFactors   []RiskFactor   `json:"risk_factors,omitempty" validate:"omitempty,dive"`
	TestResults   []TestResult   `json:"test_results,omitempty" validate:"omitempty,dive"`
}

// PersonalInfo is the demographic and obstetric profile of a patient.
type PersonalInfo struct {
	FirstName             string `json:"first_name" validate:"required"`
	LastName              string `json:"last_name" validate:"required"`
	Gender                string `json:"gender"`
	DOB                   string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	BloodGroup            string `json:"blood_group"`
	HeightCM              Scalar `json:"height_cm"`
	CurrentWeight         Scalar `json:"current_weight"`
	PrePregnancyWeight    Scalar `json:"pre_pregnancy_weight"`
	LMP                   string `json:"lmp" validate:"required,datetime=2006-01-02"`
	DueDate               string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	PreexistingConditions string `json:"preexisting_conditions"`
}

// Questionnaire holds the patient's self-reported lifestyle answers.
type Questionnaire struct {
	IsFirstPregnancy   string `json:"is_first_pregnancy"`
	ExerciseFrequency  string `json:"exercise_frequency"`
	EmotionalWellbeing string `json:"emotional_wellbeing"`
	PrenatalVitamins   string `json:"prenatal_vitamins"`
}

// RiskLevel tags the severity of a measured value.
type RiskLevel string

const (
	RiskNormal     RiskLevel = "normal"
	RiskBorderline RiskLevel = "borderline"
	RiskHigh       RiskLevel = "high_risk"
)

// Abnormal reports whether the level warrants attention.
func (r RiskLevel) Abnormal() bool {
	return r == RiskBorderline || r == RiskHigh
}

// RiskFactor is a flagged measurement with a single reference range.
type RiskFactor struct {
	TestName       string    `json:"test_name" validate:"required"`
	ResultValue    Scalar    `json:"result_value"`
	ResultUnit     string    `json:"result_unit"`
	ReferenceRange Scalar    `json:"reference_range"`
	RiskLevel      RiskLevel `json:"risk_level" validate:"omitempty,oneof=normal borderline high_risk"`
}

// TestResult is a lab value with low and high reference bounds.
type TestResult struct {
	TestName     string    `json:"test_name" validate:"required"`
	ResultValue  Scalar    `json:"result_value"`
	ResultUnit   string    `json:"result_unit"`
	RefRangeLow  Scalar    `json:"ref_range_low"`
	RefRangeHigh Scalar    `json:"ref_range_high"`
	RiskLevel    RiskLevel `json:"risk_level" validate:"required,oneof=normal borderline high_risk"`
}

// Scalar keeps a JSON string, number or boolean as the text it was sent
// with, so "10.2" and 10.2 both render as 10.2. null decodes to "".
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	switch b[0] {
	case '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(strings.TrimSpace(str))
		return nil
	case '{':
		return s.unmarshalRange(b)
	case '[':
		return fmt.Errorf("expected a string or number, got %s", b)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*s = Scalar(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("expected a string or number, got %s", b)
	}
	*s = Scalar(fmt.Sprint(v))
	return nil
}

// unmarshalRange accepts a {"low":..,"high":..} reference range and renders
// it as "low - high". A missing bound renders as "?".
func (s *Scalar) unmarshalRange(b []byte) error {
	var r struct {
		Low  *Scalar `json:"low"`
		High *Scalar `json:"high"`
	}
	if err := json.Unmarshal(b, &r); err != nil || (r.Low == nil && r.High == nil) {
		return fmt.Errorf("expected a string, number or {low,high} range, got %s", b)
	}
	bound := func(v *Scalar) string {
		if v == nil || *v == "" {
			return "?"
		}
		return string(*v)
	}
	*s = Scalar(bound(r.Low) + " - " + bound(r.High))
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s Scalar) String() string { return string(s) }
