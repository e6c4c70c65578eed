package report

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sections is the five-part output contract every returned report carries.
var Sections = []string{
	"Patient Overview",
	"Health Status Analysis",
	"Potential Risk Indicators",
	"Recommendations",
	"Next Steps",
}

const promptHead = `You are an expert obstetrician. Analyze this maternal patient profile and provide a health assessment:

Patient Profile:
`

const promptGuidelines = `

Guidelines:
`

const fallbackReport = `# Maternal Health Assessment

## Patient Overview
The patient is currently pregnant and receiving prenatal care.

## Health Status Analysis
Based on the available information, the patient appears to be in stable condition.

## Potential Risk Indicators
A comprehensive risk assessment requires in-person evaluation.

## Recommendations
- Continue prenatal vitamins
- Maintain regular checkups
- Monitor for warning signs
- Stay hydrated and maintain a balanced diet

## Next Steps
Schedule next prenatal appointment within 4 weeks.
`

const errorReport = `# Maternal Health Assessment

Error generating report. Please try again with simpler parameters.

## Patient Overview
Not available.

## Health Status Analysis
Not available.

## Potential Risk Indicators
Not available.

## Recommendations
Please consult your healthcare provider.

## Next Steps
Retry the report generation later.
`

const timeoutReport = `# Maternal Health Assessment

Report generation timed out. Please try again later.

## Patient Overview
Not available.

## Health Status Analysis
Not available.

## Potential Risk Indicators
Not available.

## Recommendations
Please consult your healthcare provider.

## Next Steps
Retry the report generation later.
`

// FallbackReport is returned when the model output is empty or degenerate.
func FallbackReport() string { return fallbackReport }

// ErrorReport is returned when the text generation backend fails.
func ErrorReport() string { return errorReport }

// TimeoutReport is returned when generation exceeds its deadline.
func TimeoutReport() string { return timeoutReport }

func promptTail() string {
	var b strings.Builder
	b.WriteString("\n\nProvide a profile analysis with:\n")
	for i, s := range Sections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

// BuildPrompt renders the generation prompt. When the result would exceed
// maxChars runes the patient profile is cut, never the guidelines or the
// output contract.
func BuildPrompt(profile, guidelines string, maxChars int) string {
	tail := promptTail()
	if maxChars > 0 {
		fixed := utf8.RuneCountInString(promptHead) + utf8.RuneCountInString(promptGuidelines) +
			utf8.RuneCountInString(guidelines) + utf8.RuneCountInString(tail)
		profile = truncate(profile, max(maxChars-fixed, 0))
	}
	return promptHead + profile + promptGuidelines + guidelines + tail
}

// HasAllSections reports whether text mentions every section heading.
func HasAllSections(text string) bool {
	for _, s := range Sections {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
