package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/casegraph/discovery"
)

// Classifier is the narrow external collaborator interface of spec §6.3:
// classify(text, enum, hints) -> {label, confidence}. Implementations must
// be idempotent from the caller's view and enforce their own timeout.
type Classifier interface {
	Classify(ctx context.Context, text string, hints []string) (label string, confidence float64, err error)
}

// enumList is the closed DocumentType vocabulary, rendered once for the
// prompt.
var enumList = []string{
	"Motion", "Deposition", "Exhibit", "Contract", "Email", "MedicalRecord",
	"PoliceReport", "IncidentReport", "ExpertReport", "Affidavit",
	"WitnessStatement", "Invoice", "FinancialRecord", "EmploymentRecord",
	"InsurancePolicy", "InterrogatoryResponse", "AdmissionResponse",
	"DriverQualificationFile", "MaintenanceRecord", "InspectionReport",
	"HoursOfServiceLog", "BillOfLading", "Correspondence", "Other",
}

// classificationPromptTemplate is a focused, strict-JSON prompt in the idiom
// of the teacher's entity/relationship extraction prompts: closed enum,
// explicit output contract, no prose outside the JSON object.
const classificationPromptTemplate = `You are a legal document classification engine.
Given the leading text of one segment of a discovery production, choose exactly one document type from this closed list:
%s

Return a JSON object with exactly two keys:
  "label"      : one of the values above, verbatim
  "confidence" : a float between 0 and 1

Rules:
- If none of the listed types clearly apply, use "Other".
- Do NOT invent a label outside the list.
- Do NOT include any text outside the JSON object.

Boundary indicators observed for this segment: %s

Segment text:
%s
`

type llmLabelResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// classifyWithLLM invokes c with the strict prompt and clamps any
// out-of-enum label to Other (spec §4.3).
func classifyWithLLM(ctx context.Context, c Classifier, text string, hints []string) (discovery.DocumentType, float64, error) {
	prompt := fmt.Sprintf(classificationPromptTemplate, strings.Join(enumList, ", "), strings.Join(hints, ", "), truncate(text, 4000))

	label, confidence, err := c.Classify(ctx, prompt, hints)
	if err != nil {
		return discovery.Other, 0, fmt.Errorf("classify: llm fallback: %w", err)
	}

	// Tolerate providers that return a raw JSON document instead of a bare
	// label; best-effort unwrap, falling back to treating the string as
	// the label itself.
	var parsed llmLabelResponse
	if json.Unmarshal([]byte(label), &parsed) == nil && parsed.Label != "" {
		label = parsed.Label
		if confidence == 0 {
			confidence = parsed.Confidence
		}
	}

	return discovery.ClampDocumentType(label), confidence, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
