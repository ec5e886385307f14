// Package classify assigns a closed-enum DocumentType to each Segment
// (spec.md §4.3): a pure, offline deterministic classifier runs first;
// only when its confidence falls below threshold does an external LLM
// classifier run as a fallback, with its output clamped to the enum.
package classify

import (
	"regexp"
	"strings"

	"github.com/casegraph/discovery"
)

// trigger is one priority-ordered keyword/regex rule. Rules are evaluated
// in descending Priority; the first matching rule for the highest
// priority present wins.
type trigger struct {
	documentType discovery.DocumentType
	pattern      *regexp.Regexp
	priority     int
	confidence   float64
}

// triggers is the fixed rule set. Ties within a priority band are resolved
// by list order (first match wins), keeping the classifier a pure function
// of (text, rule set version).
var triggers = []trigger{
	{discovery.Deposition, regexp.MustCompile(`(?i)\bDEPOSITION OF\b`), 100, 0.95},
	{discovery.BillOfLading, regexp.MustCompile(`(?i)\bBILL OF LADING\b`), 100, 0.95},
	{discovery.ExpertReport, regexp.MustCompile(`(?i)\bEXPERT REPORT\b`), 100, 0.93},
	{discovery.Exhibit, regexp.MustCompile(`(?i)\bEXHIBIT\s+[A-Z0-9-]+\b`), 95, 0.9},
	{discovery.Motion, regexp.MustCompile(`(?i)\bMOTION (TO|FOR)\b`), 95, 0.9},
	{discovery.Invoice, regexp.MustCompile(`(?i)\bINVOICE\s*#?\d*\b`), 90, 0.88},
	{discovery.Affidavit, regexp.MustCompile(`(?i)\bAFFIDAVIT OF\b`), 90, 0.9},
	{discovery.WitnessStatement, regexp.MustCompile(`(?i)\bWITNESS STATEMENT\b`), 90, 0.88},
	{discovery.PoliceReport, regexp.MustCompile(`(?i)\bPOLICE (CRASH |TRAFFIC )?REPORT\b`), 90, 0.9},
	{discovery.IncidentReport, regexp.MustCompile(`(?i)\bINCIDENT REPORT\b`), 88, 0.88},
	{discovery.InterrogatoryResponse, regexp.MustCompile(`(?i)\bINTERROGATOR(Y|IES)\b.*\bRESPONSE`), 85, 0.85},
	{discovery.AdmissionResponse, regexp.MustCompile(`(?i)\bREQUESTS? FOR ADMISSIONS?\b`), 85, 0.85},
	{discovery.DriverQualificationFile, regexp.MustCompile(`(?i)\bDRIVER QUALIFICATION FILE\b`), 85, 0.88},
	{discovery.MaintenanceRecord, regexp.MustCompile(`(?i)\bMAINTENANCE (RECORD|LOG)\b`), 80, 0.82},
	{discovery.InspectionReport, regexp.MustCompile(`(?i)\bINSPECTION REPORT\b`), 80, 0.82},
	{discovery.HoursOfServiceLog, regexp.MustCompile(`(?i)\bHOURS?.OF.SERVICE\b|\bRECORD OF DUTY STATUS\b`), 80, 0.85},
	{discovery.InsurancePolicy, regexp.MustCompile(`(?i)\bDECLARATIONS? PAGE\b|\bCERTIFICATE OF INSURANCE\b|\bPOLICY NUMBER\b`), 78, 0.8},
	{discovery.MedicalRecord, regexp.MustCompile(`(?i)\bPATIENT NAME\b|\bDIAGNOSIS\b|\bDISCHARGE SUMMARY\b`), 75, 0.78},
	{discovery.EmploymentRecord, regexp.MustCompile(`(?i)\bEMPLOYEE (FILE|RECORD)\b|\bPERSONNEL FILE\b`), 70, 0.75},
	{discovery.FinancialRecord, regexp.MustCompile(`(?i)\bSTATEMENT OF ACCOUNT\b|\bACCOUNT STATEMENT\b|\bBANK STATEMENT\b`), 70, 0.75},
	{discovery.Contract, regexp.MustCompile(`(?i)\bTHIS AGREEMENT\b|\bNOW, THEREFORE\b|\bWITNESSETH\b`), 65, 0.72},
	{discovery.Email, regexp.MustCompile(`(?im)^\s*From:\s*\S.*\n.*^\s*To:\s*\S`), 60, 0.8},
	{discovery.Correspondence, regexp.MustCompile(`(?i)\bDear (Sir|Madam|Mr\.|Ms\.|Counsel)\b`), 55, 0.7},
}

// DeterministicClassify applies the fixed, priority-ordered trigger set to
// the segment's leading headerLines plus the supplied footer text. It is
// pure, side-effect-free, and offline.
func DeterministicClassify(text string, headerLines int, footer string) (discovery.DocumentType, float64) {
	head := firstLines(text, headerLines)
	scope := head + "\n" + footer

	best := -1
	for i, tr := range triggers {
		if !tr.pattern.MatchString(scope) {
			continue
		}
		if best == -1 || tr.priority > triggers[best].priority {
			best = i
		}
	}
	if best == -1 {
		return discovery.Other, 0.0
	}
	return triggers[best].documentType, triggers[best].confidence
}

func firstLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
