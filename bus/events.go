// Package bus implements the topic-based progress pub/sub channel of
// spec.md §4.9: ordered, at-least-once delivery to a bounded per-subscriber
// buffer, with the slowest subscribers dropped rather than producers
// blocked.
package bus

import "time"

// EventType is the closed set of progress event types (spec §4.9).
type EventType string

const (
	JobStarted       EventType = "job.started"
	DocumentFound    EventType = "document.found"
	DocumentDuplicate EventType = "document.duplicate"
	SegmentChunking  EventType = "segment.chunking"
	SegmentEmbedding EventType = "segment.embedding"
	SegmentStored    EventType = "segment.stored"
	FactExtracted    EventType = "fact.extracted"
	JobCompleted     EventType = "job.completed"
	JobFailed        EventType = "job.failed"
	JobCancelled     EventType = "job.cancelled"
)

// Event is one frame published on a topic. Seq is monotonically increasing
// per topic so subscribers can detect gaps.
type Event struct {
	Seq     uint64      `json:"seq"`
	Ts      time.Time   `json:"ts"`
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// JobStartedPayload is the payload for JobStarted.
type JobStartedPayload struct {
	TotalFiles int `json:"totalFiles"`
}

// DocumentFoundPayload is the payload for DocumentFound.
type DocumentFoundPayload struct {
	DocumentID   string  `json:"documentId"`
	Title        string  `json:"title"`
	DocumentType string  `json:"documentType"`
	PageCount    int     `json:"pageCount"`
	BatesRange   *string `json:"batesRange,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// DocumentDuplicatePayload is the payload for DocumentDuplicate.
type DocumentDuplicatePayload struct {
	DocumentID string `json:"documentId"`
	OriginalID string `json:"originalId"`
}

// SegmentChunkingPayload is the payload for SegmentChunking.
type SegmentChunkingPayload struct {
	DocumentID    string  `json:"documentId"`
	SegmentID     string  `json:"segmentId"`
	ChunksCreated int     `json:"chunksCreated"`
	Progress      float64 `json:"progress"`
}

// SegmentEmbeddingPayload is the payload for SegmentEmbedding.
type SegmentEmbeddingPayload struct {
	DocumentID string  `json:"documentId"`
	SegmentID  string  `json:"segmentId"`
	Progress   float64 `json:"progress"`
}

// SegmentStoredPayload is the payload for SegmentStored.
type SegmentStoredPayload struct {
	DocumentID    string `json:"documentId"`
	SegmentID     string `json:"segmentId"`
	VectorsStored int    `json:"vectorsStored"`
}

// FactExtractedPayload is the payload for FactExtracted.
type FactExtractedPayload struct {
	DocumentID string  `json:"documentId"`
	FactID     string  `json:"factId"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// JobCompletedPayload is the payload for JobCompleted.
type JobCompletedPayload struct {
	Totals         interface{} `json:"totals"`
	ElapsedSeconds float64     `json:"elapsedSeconds"`
}

// JobFailedPayload is the payload for JobFailed.
type JobFailedPayload struct {
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	DocumentID string `json:"documentId,omitempty"`
}

// JobCancelledPayload is the payload for JobCancelled.
type JobCancelledPayload struct {
	Reason string `json:"reason"`
}

// IsTerminal reports whether t is one of the three terminal event types a
// subscriber is guaranteed to eventually see (spec §7: "the front-end
// always receives a terminal event per job").
func IsTerminal(t EventType) bool {
	return t == JobCompleted || t == JobFailed || t == JobCancelled
}
