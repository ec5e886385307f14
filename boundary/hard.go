package boundary

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/casegraph/discovery"
)

// headerPattern pairs a document-kind header regex with the DocumentType
// and human-readable indicator it implies when matched against the leading
// text of a page (spec §4.2: "Document-kind headers matching a fixed set
// of patterns").
type headerPattern struct {
	re           *regexp.Regexp
	documentType discovery.DocumentType
	indicator    string
}

var headerPatterns = []headerPattern{
	{regexp.MustCompile(`(?i)^\s*DEPOSITION OF\b`), discovery.Deposition, "header:deposition-of"},
	{regexp.MustCompile(`(?i)^\s*BILL OF LADING\b`), discovery.BillOfLading, "header:bill-of-lading"},
	{regexp.MustCompile(`(?i)^\s*EXPERT REPORT\b`), discovery.ExpertReport, "header:expert-report"},
	{regexp.MustCompile(`(?i)^\s*EXHIBIT\s+[A-Z0-9-]+\b`), discovery.Exhibit, "header:exhibit"},
	{regexp.MustCompile(`(?i)^\s*MOTION (TO|FOR)\b`), discovery.Motion, "header:motion"},
	{regexp.MustCompile(`(?i)^\s*INVOICE\s*#?\d*`), discovery.Invoice, "header:invoice"},
	{regexp.MustCompile(`(?i)^\s*AFFIDAVIT OF\b`), discovery.Affidavit, "header:affidavit-of"},
	{regexp.MustCompile(`(?i)^\s*WITNESS STATEMENT\b`), discovery.WitnessStatement, "header:witness-statement"},
	{regexp.MustCompile(`(?i)^\s*POLICE (CRASH |TRAFFIC )?REPORT\b`), discovery.PoliceReport, "header:police-report"},
	{regexp.MustCompile(`(?i)^\s*INCIDENT REPORT\b`), discovery.IncidentReport, "header:incident-report"},
	{regexp.MustCompile(`(?i)^\s*INTERROGATOR(Y|IES)\b.*RESPONSE`), discovery.InterrogatoryResponse, "header:interrogatory-response"},
	{regexp.MustCompile(`(?i)^\s*(RESPONSE TO )?REQUESTS? FOR ADMISSIONS?\b`), discovery.AdmissionResponse, "header:admission-response"},
	{regexp.MustCompile(`(?i)^\s*DRIVER QUALIFICATION FILE\b`), discovery.DriverQualificationFile, "header:driver-qualification-file"},
	{regexp.MustCompile(`(?i)^\s*MAINTENANCE (RECORD|LOG)\b`), discovery.MaintenanceRecord, "header:maintenance-record"},
	{regexp.MustCompile(`(?i)^\s*(VEHICLE |ANNUAL )?INSPECTION REPORT\b`), discovery.InspectionReport, "header:inspection-report"},
	{regexp.MustCompile(`(?i)^\s*(DRIVER'?S? )?(RECORD OF )?DUTY STATUS|HOURS?.OF.SERVICE`), discovery.HoursOfServiceLog, "header:hours-of-service"},
	{regexp.MustCompile(`(?i)^\s*(DECLARATIONS? PAGE|CERTIFICATE OF INSURANCE|POLICY NUMBER)\b`), discovery.InsurancePolicy, "header:insurance-policy"},
}

// emailHeaderBlock detects the {From:, To:, Subject:, Date:} block spec §4.2
// names explicitly for Email boundaries.
var (
	emailFrom    = regexp.MustCompile(`(?im)^\s*From:\s*\S`)
	emailTo      = regexp.MustCompile(`(?im)^\s*To:\s*\S`)
	emailSubject = regexp.MustCompile(`(?im)^\s*Subject:\s*\S`)
	emailDate    = regexp.MustCompile(`(?im)^\s*Date:\s*\S`)
)

func isEmailHeaderBlock(text string) bool {
	hits := 0
	for _, re := range []*regexp.Regexp{emailFrom, emailTo, emailSubject, emailDate} {
		if re.MatchString(text) {
			hits++
		}
	}
	return hits >= 3
}

// batesRe extracts a letter prefix and the numeric suffix without its
// leading zeros, e.g. "DEF000123" -> ("DEF", "123").
var batesRe = regexp.MustCompile(`^([A-Za-z]+)0*([0-9]+)$`)

// batesSequential reports whether b follows a directly after a: same
// prefix, numeric difference exactly 1.
func batesSequential(a, b string) (sequential bool, comparable bool) {
	ma := batesRe.FindStringSubmatch(a)
	mb := batesRe.FindStringSubmatch(b)
	if ma == nil || mb == nil {
		return false, false
	}
	if ma[1] != mb[1] {
		return false, true
	}
	na, erra := strconv.Atoi(ma[2])
	nb, errb := strconv.Atoi(mb[2])
	if erra != nil || errb != nil {
		return false, true
	}
	return nb-na == 1, true
}

// headerText returns the leading portion of a page's text used for header
// matching: the first headerLines lines.
func headerText(text string, headerLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > headerLines {
		lines = lines[:headerLines]
	}
	return strings.Join(lines, "\n")
}

// detectHard runs the rule-based, high-precision pass over the page
// stream, yielding one candidate per triggered boundary.
func detectHard(pages []PageFeatures) []candidate {
	var out []candidate

	for i, p := range pages {
		head := headerText(p.Text, 40)

		for _, hp := range headerPatterns {
			if hp.re.MatchString(head) {
				out = append(out, candidate{
					startPage:    p.PageNum,
					documentType: hp.documentType,
					confidence:   0.85,
					indicators:   []string{hp.indicator},
					hard:         true,
				})
				break
			}
		}
		if isEmailHeaderBlock(head) {
			out = append(out, candidate{
				startPage:    p.PageNum,
				documentType: discovery.Email,
				confidence:   0.88,
				indicators:   []string{"header:email-block"},
				hard:         true,
			})
		}

		if i == 0 {
			continue
		}
		prev := pages[i-1]

		if prev.BatesNumber != "" && p.BatesNumber != "" {
			seq, comparable := batesSequential(prev.BatesNumber, p.BatesNumber)
			if comparable && !seq {
				out = append(out, candidate{
					startPage:  p.PageNum,
					confidence: 0.82,
					indicators: []string{"bates-discontinuity"},
					hard:       true,
				})
			}
		}

		if prev.StructuralHash != "" && p.StructuralHash != "" && prev.StructuralHash != p.StructuralHash &&
			fontDiscontinuity(prev, p) {
			out = append(out, candidate{
				startPage:  p.PageNum,
				confidence: 0.8,
				indicators: []string{"letterhead-transition"},
				hard:       true,
			})
		}
	}
	return out
}

func fontDiscontinuity(a, b PageFeatures) bool {
	if a.DominantFont != "" && b.DominantFont != "" && a.DominantFont != b.DominantFont {
		return true
	}
	return avgFontSize(a.FontSizes) != avgFontSize(b.FontSizes) &&
		absDelta(avgFontSize(a.FontSizes), avgFontSize(b.FontSizes)) > 2.0
}

func avgFontSize(sizes []float64) float64 {
	if len(sizes) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sizes {
		sum += s
	}
	return sum / float64(len(sizes))
}

func absDelta(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
