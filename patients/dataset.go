package patients

import (
	"encoding/json"
	"log"
	"strconv"

	"materna-backend/patientctx"
)

// BuildDataset assembles the report input for p from its stored profile and
// the risk factors and test results found in its medical reports. Reports
// whose analysis is not a JSON object are skipped; inside one, a key that is
// not a list or an entry that does not decode is dropped on its own.
func BuildDataset(p Patient, reports []MedicalReport) patientctx.Dataset {
	entry := patientctx.Entry{
		PersonalInfo: &patientctx.PersonalInfo{
			FirstName:             p.FirstName,
			LastName:              p.LastName,
			Gender:                p.Gender,
			DOB:                   p.DOB,
			BloodGroup:            p.BloodGroup,
			HeightCM:              floatScalar(p.HeightCM),
			CurrentWeight:         floatScalar(p.CurrentWeight),
			PrePregnancyWeight:    floatScalar(p.PrePregnancyWeight),
			LMP:                   p.LMP,
			DueDate:               p.DueDate,
			PreexistingConditions: p.PreexistingConditions,
		},
		Questionnaire: &patientctx.Questionnaire{
			IsFirstPregnancy:   firstPregnancy(p.Gravida),
			ExerciseFrequency:  "Unknown",
			EmotionalWellbeing: "Unknown",
			PrenatalVitamins:   "Unknown",
		},
	}
	for _, r := range reports {
		if len(r.AnalysisResults) == 0 {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(r.AnalysisResults, &fields); err != nil {
			log.Printf("[patients] skipping analysis of report_id=%s: %v", r.ReportID, err)
			continue
		}
		entry.RiskFactors = append(entry.RiskFactors, decodeList[patientctx.RiskFactor](r.ReportID, "risk_factors", fields["risk_factors"])...)
		entry.TestResults = append(entry.TestResults, decodeList[patientctx.TestResult](r.ReportID, "test_results", fields["test_results"])...)
	}
	return patientctx.Dataset{p.PatientID: entry}
}

// decodeList decodes raw as a list of T, keeping every element that decodes.
// A missing or null key yields nothing.
func decodeList[T any](reportID, key string, raw json.RawMessage) []T {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Printf("[patients] report_id=%s %s is not a list, ignoring it", reportID, key)
		return nil
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			log.Printf("[patients] report_id=%s dropping %s[%d]: %v", reportID, key, i, err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func firstPregnancy(gravida *int) string {
	if gravida != nil && *gravida == 1 {
		return "Yes"
	}
	return "No"
}

func floatScalar(v *float64) patientctx.Scalar {
	if v == nil {
		return ""
	}
	return patientctx.Scalar(strconv.FormatFloat(*v, 'f', -1, 64))
}
