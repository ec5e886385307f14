// Package discovery implements a case-isolated legal discovery processing
// engine: boundary detection, segment classification, chunking, hybrid
// indexing, fact extraction, and progress streaming over PDF productions.
package discovery

import "time"

// DocumentType is the closed legal-document taxonomy. LLM and rule-based
// classifiers must clamp any value outside this set to Other.
type DocumentType string

const (
	Motion                   DocumentType = "Motion"
	Deposition               DocumentType = "Deposition"
	Exhibit                  DocumentType = "Exhibit"
	Contract                 DocumentType = "Contract"
	Email                    DocumentType = "Email"
	MedicalRecord            DocumentType = "MedicalRecord"
	PoliceReport             DocumentType = "PoliceReport"
	IncidentReport           DocumentType = "IncidentReport"
	ExpertReport             DocumentType = "ExpertReport"
	Affidavit                DocumentType = "Affidavit"
	WitnessStatement         DocumentType = "WitnessStatement"
	Invoice                  DocumentType = "Invoice"
	FinancialRecord          DocumentType = "FinancialRecord"
	EmploymentRecord         DocumentType = "EmploymentRecord"
	InsurancePolicy          DocumentType = "InsurancePolicy"
	InterrogatoryResponse    DocumentType = "InterrogatoryResponse"
	AdmissionResponse        DocumentType = "AdmissionResponse"
	DriverQualificationFile  DocumentType = "DriverQualificationFile"
	MaintenanceRecord        DocumentType = "MaintenanceRecord"
	InspectionReport         DocumentType = "InspectionReport"
	HoursOfServiceLog        DocumentType = "HoursOfServiceLog"
	BillOfLading             DocumentType = "BillOfLading"
	Correspondence           DocumentType = "Correspondence"
	Other                    DocumentType = "Other"
)

// documentTypeSet is used to validate/clamp classifier output.
var documentTypeSet = map[DocumentType]bool{
	Motion: true, Deposition: true, Exhibit: true, Contract: true, Email: true,
	MedicalRecord: true, PoliceReport: true, IncidentReport: true, ExpertReport: true,
	Affidavit: true, WitnessStatement: true, Invoice: true, FinancialRecord: true,
	EmploymentRecord: true, InsurancePolicy: true, InterrogatoryResponse: true,
	AdmissionResponse: true, DriverQualificationFile: true, MaintenanceRecord: true,
	InspectionReport: true, HoursOfServiceLog: true, BillOfLading: true,
	Correspondence: true, Other: true,
}

// ClampDocumentType maps any out-of-enum label to Other.
func ClampDocumentType(label string) DocumentType {
	dt := DocumentType(label)
	if documentTypeSet[dt] {
		return dt
	}
	return Other
}

// factExtractionAllowed is the gate used by the fact extractor (spec §4.8):
// primary evidence, sworn testimony, business records, discovery responses.
// Motions, pleadings, discovery requests, and opinion briefs are excluded.
var factExtractionAllowed = map[DocumentType]bool{
	Deposition:              true,
	Exhibit:                 true,
	MedicalRecord:           true,
	PoliceReport:            true,
	IncidentReport:          true,
	ExpertReport:            true,
	Affidavit:               true,
	WitnessStatement:        true,
	Invoice:                 true,
	FinancialRecord:         true,
	EmploymentRecord:        true,
	InsurancePolicy:         true,
	InterrogatoryResponse:   true,
	AdmissionResponse:       true,
	DriverQualificationFile: true,
	MaintenanceRecord:       true,
	InspectionReport:        true,
	HoursOfServiceLog:       true,
	BillOfLading:            true,
	Correspondence:          true,
	Email:                   true,
}

// FactExtractionAllowed reports whether dt is eligible for fact extraction
// without a force override.
func FactExtractionAllowed(dt DocumentType) bool {
	return factExtractionAllowed[dt]
}

// CaseName is an opaque per-matter identifier. Every persisted record
// carries one; no operation may cross it except via a SharedCollection.
type CaseName string

// BatesRange is an inclusive pair of Bates-stamped page identifiers.
type BatesRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Document is exclusively owned by its case; immutable after ingest except
// for SupersededBy.
type Document struct {
	ID             string            `json:"id"`
	CaseName       CaseName          `json:"caseName"`
	ContentHash    string            `json:"contentHash"`
	FileName       string            `json:"fileName"`
	SizeBytes      int64             `json:"sizeBytes"`
	PageCount      int               `json:"pageCount"`
	MimeType       string            `json:"mimeType"`
	IngestedAt     time.Time         `json:"ingestedAt"`
	SourceMetadata map[string]string `json:"sourceMetadata,omitempty"`
	SupersededBy   string            `json:"supersededBy,omitempty"`
}

// Segment is a contiguous page range of a Document treated as one logical
// document after boundary detection. Segments of a Document partition its
// page range: no gaps, no overlaps.
type Segment struct {
	ID                 string       `json:"id"`
	DocumentID         string       `json:"documentId"`
	CaseName           CaseName     `json:"caseName"`
	StartPage          int          `json:"startPage"`
	EndPage            int          `json:"endPage"`
	DocumentType       DocumentType `json:"documentType"`
	Title              string       `json:"title,omitempty"`
	Confidence         float64      `json:"confidence"`
	BatesRange         *BatesRange  `json:"batesRange,omitempty"`
	BoundaryIndicators []string     `json:"boundaryIndicators"`
	NeedsOCR           bool         `json:"needsOCR,omitempty"`
}

// ChunkMetadata mirrors the verbatim payload keys required by spec §6.4.
type ChunkMetadata struct {
	CaseName        CaseName     `json:"caseName"`
	DocumentID      string       `json:"documentId"`
	SegmentID       string       `json:"segmentId"`
	Ordinal         int          `json:"ordinal"`
	DocumentType    DocumentType `json:"documentType"`
	PageSpanStart   int          `json:"pageSpanStart"`
	PageSpanEnd     int          `json:"pageSpanEnd"`
	BatesStart      string       `json:"batesStart,omitempty"`
	BatesEnd        string       `json:"batesEnd,omitempty"`
	ProductionBatch string       `json:"productionBatch,omitempty"`
	ProducingParty  string       `json:"producingParty,omitempty"`
	HasCitations    bool         `json:"hasCitations"`
	CitationCount   int          `json:"citationCount"`
	HasMonetary     bool         `json:"hasMonetary"`
	HasDates        bool         `json:"hasDates"`
}

// Chunk is the unit stored in a per-case vector collection. Ordinal is
// dense per segment: {0, 1, ..., k-1}.
type Chunk struct {
	ID              string             `json:"id"`
	CaseName        CaseName           `json:"caseName"`
	DocumentID      string             `json:"documentId"`
	SegmentID       string             `json:"segmentId"`
	Ordinal         int                `json:"ordinal"`
	Text            string             `json:"text"`
	DenseVector     []float32          `json:"denseVector,omitempty"`
	SparseKeywords  map[uint32]float32 `json:"sparseKeywords,omitempty"`
	SparseCitations map[uint32]float32 `json:"sparseCitations,omitempty"`
	TokenCount      int                `json:"tokenCount"`
	Metadata        ChunkMetadata      `json:"metadata"`
}

// DateRef is a dated reference extracted into a Fact.
type DateRef struct {
	Raw  string    `json:"raw"`
	Date time.Time `json:"date"`
}

// FactEdit records one mutation in a Fact's history.
type FactEdit struct {
	At       time.Time `json:"at"`
	UserID   string    `json:"userId"`
	Reason   string    `json:"reason"`
	Action   string    `json:"action"` // "edit" | "delete"
	Previous string    `json:"previous,omitempty"`
}

// Fact is a schema-validated statement extracted from a chunk, with
// provenance and soft-delete/edit-history semantics.
type Fact struct {
	ID             string              `json:"id"`
	CaseName       CaseName            `json:"caseName"`
	DocumentID     string              `json:"documentId"`
	ChunkIDs       []string            `json:"chunkIds"`
	Content        string              `json:"content"`
	Category       string              `json:"category"`
	Entities       map[string][]string `json:"entities,omitempty"`
	DateReferences []DateRef           `json:"dateReferences,omitempty"`
	Confidence     float64             `json:"confidence"`
	SourceSnippet  string              `json:"sourceSnippet"`
	Page           int                 `json:"page"`
	BBox           *[4]float64         `json:"bbox,omitempty"`
	IsEdited       bool                `json:"isEdited"`
	IsDeleted      bool                `json:"isDeleted"`
	EditHistory    []FactEdit          `json:"editHistory,omitempty"`
	ReviewStatus   string              `json:"reviewStatus"`
}

// DuplicateLocation is a secondary sighting of an already-ingested
// contentHash.
type DuplicateLocation struct {
	CaseName CaseName `json:"caseName"`
	Path     string   `json:"path"`
}

// DuplicateRecord short-circuits reprocessing of identical bytes within a
// case. Cross-case deduplication is prohibited by construction: the
// registry is keyed per case.
type DuplicateRecord struct {
	ContentHash         string              `json:"contentHash"`
	PrimaryDocumentID   string              `json:"primaryDocumentId"`
	AdditionalLocations []DuplicateLocation `json:"additionalLocations"`
}

// JobState is the closed ProcessingJob lifecycle.
type JobState string

const (
	JobQueued    JobState = "Queued"
	JobRunning   JobState = "Running"
	JobCompleted JobState = "Completed"
	JobFailed    JobState = "Failed"
	JobCancelled JobState = "Cancelled"
)

// JobTotals tracks cumulative progress counters for a ProcessingJob.
type JobTotals struct {
	FilesFound     int `json:"filesFound"`
	DocsProcessed  int `json:"docsProcessed"`
	ChunksStored   int `json:"chunksStored"`
	FactsExtracted int `json:"factsExtracted"`
	Errors         int `json:"errors"`
}

// JobError is one entry of Job.errors: a recovered per-segment failure.
type JobError struct {
	DocumentID string `json:"documentId,omitempty"`
	SegmentID  string `json:"segmentId,omitempty"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// ProcessingJob is the mutable record of one orchestrator run, readable by
// the API and the progress bus.
type ProcessingJob struct {
	ID          string     `json:"id"`
	CaseName    CaseName   `json:"caseName"`
	State       JobState   `json:"state"`
	Totals      JobTotals  `json:"totals"`
	Errors      []JobError `json:"errors"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// SharedCollection names a read-only, non-case-scoped collection (statutes,
// regulations). The set is closed and configured at startup.
type SharedCollection string
