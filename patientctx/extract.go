// Package patientctx turns a patient record and its history into the plain
// text summary used both as retrieval query and as prompt input.
package patientctx

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPatientNotFound is returned when the requested id is not in the dataset.
var ErrPatientNotFound = errors.New("patient not found")

const (
	dateLayout  = "2006-01-02"
	notProvided = "Not provided"
)

// Extractor builds patient contexts against an injectable clock.
type Extractor struct {
	now func() time.Time
}

// NewExtractor returns an Extractor; a nil clock means time.Now.
func NewExtractor(clock func() time.Time) *Extractor {
	if clock == nil {
		clock = time.Now
	}
	return &Extractor{now: clock}
}

// Extract renders the context block for patientID. The output is fully
// determined by ds and the clock.
func (e *Extractor) Extract(ds Dataset, patientID string) (string, error) {
	entry, ok := ds[patientID]
	if !ok || entry.PersonalInfo == nil {
		return "", ErrPatientNotFound
	}
	today := e.now()
	p := entry.PersonalInfo
	q := entry.Questionnaire
	if q == nil {
		q = &Questionnaire{}
	}

	var sb strings.Builder
	sb.WriteString("Patient Summary:\n")
	line(&sb, "Name", strings.TrimSpace(p.FirstName+" "+p.LastName))
	line(&sb, "Age", age(p.DOB, today))
	line(&sb, "Gender", p.Gender)
	line(&sb, "Due Date", p.DueDate)
	line(&sb, "Last Menstrual Period", p.LMP)
	line(&sb, "Current Week", currentWeek(p.LMP, today))
	line(&sb, "Blood Group", p.BloodGroup)
	line(&sb, "Pre-existing Conditions", p.PreexistingConditions)
	line(&sb, "Height", measure(p.HeightCM, "cm"))
	line(&sb, "Current Weight", measure(p.CurrentWeight, "kg"))
	line(&sb, "Pre-pregnancy Weight", measure(p.PrePregnancyWeight, "kg"))

	sb.WriteString("\nQuestionnaire Information:\n")
	line(&sb, "First Pregnancy", q.IsFirstPregnancy)
	line(&sb, "Exercise Frequency", q.ExerciseFrequency)
	line(&sb, "Emotional Wellbeing", q.EmotionalWellbeing)
	line(&sb, "Prenatal Vitamins", q.PrenatalVitamins)

	if len(entry.RiskFactors) > 0 {
		sb.WriteString("\nRisk Factors:\n")
		for _, r := range entry.RiskFactors {
			fmt.Fprintf(&sb, "- %s: %s (Reference Range: %s), Risk Level: %s\n",
				r.TestName, valueWithUnit(r.ResultValue, r.ResultUnit), orDefault(r.ReferenceRange.String()), orDefault(string(r.RiskLevel)))
		}
	}

	abnormal := AbnormalResults(entry.TestResults)
	if len(abnormal) > 0 {
		sb.WriteString("\nAbnormal Test Results:\n")
		for _, r := range abnormal {
			fmt.Fprintf(&sb, "- %s: %s (Reference Range: %s - %s), Risk Level: %s\n",
				r.TestName, valueWithUnit(r.ResultValue, r.ResultUnit), orDefault(r.RefRangeLow.String()), orDefault(r.RefRangeHigh.String()), r.RiskLevel)
		}
	}
	return sb.String(), nil
}

// AbnormalResults keeps borderline and high_risk results in input order.
func AbnormalResults(results []TestResult) []TestResult {
	var out []TestResult
	for _, r := range results {
		if r.RiskLevel.Abnormal() {
			out = append(out, r)
		}
	}
	return out
}

// PregnancyWeek returns floor(days between lmp and today / 7), counting
// calendar days so the time of day never shifts the result.
func PregnancyWeek(lmp, today time.Time) int {
	days := int(dateOnly(today).Sub(dateOnly(lmp)).Hours() / 24)
	if days < 0 {
		return (days - 6) / 7
	}
	return days / 7
}

func currentWeek(lmp string, today time.Time) string {
	t, err := time.Parse(dateLayout, strings.TrimSpace(lmp))
	if err != nil {
		return notProvided
	}
	return fmt.Sprint(PregnancyWeek(t, today))
}

func age(dob string, today time.Time) string {
	t, err := time.Parse(dateLayout, strings.TrimSpace(dob))
	if err != nil {
		return notProvided
	}
	years := today.Year() - t.Year()
	if today.Month() < t.Month() || (today.Month() == t.Month() && today.Day() < t.Day()) {
		years--
	}
	return fmt.Sprintf("%d years", years)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func measure(v Scalar, unit string) string {
	if v == "" {
		return ""
	}
	return v.String() + " " + unit
}

func valueWithUnit(v Scalar, unit string) string {
	return strings.TrimSpace(orDefault(v.String()) + " " + strings.TrimSpace(unit))
}

func line(sb *strings.Builder, label, value string) {
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(orDefault(value))
	sb.WriteByte('\n')
}

func orDefault(v string) string {
	if strings.TrimSpace(v) == "" {
		return notProvided
	}
	return strings.TrimSpace(v)
}
