package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casegraph/discovery"
	"github.com/casegraph/discovery/boundary"
	"github.com/casegraph/discovery/bus"
	"github.com/casegraph/discovery/classify"
	"github.com/casegraph/discovery/encode"
	"github.com/casegraph/discovery/extract"
	"github.com/casegraph/discovery/registry"
	"github.com/casegraph/discovery/vectorstore"
)

// processFile runs one input file through dedup, boundary detection, and
// per-segment processing (spec §4.1 step 3).
func (o *Orchestrator) processFile(ctx context.Context, j *job, req JobRequest, f FileInput) error {
	contentHash := registry.ContentHash(f.Bytes)
	docID := uuid.New().String()

	doc := discovery.Document{
		ID:             docID,
		CaseName:       req.CaseName,
		ContentHash:    contentHash,
		FileName:       f.Name,
		SizeBytes:      int64(len(f.Bytes)),
		MimeType:       "application/pdf",
		IngestedAt:     time.Now(),
		SourceMetadata: req.ProductionMetadata,
	}

	outcome, err := o.registry.Register(ctx, doc, f.Name)
	if err != nil {
		return o.recordDocumentFailure(j, "registry", docID, err)
	}
	if outcome.Duplicate {
		o.publish(j, bus.DocumentDuplicate, bus.DocumentDuplicatePayload{DocumentID: docID, OriginalID: outcome.PrimaryID})
		return nil
	}

	pages, err := o.pages(f.Bytes)
	if err != nil {
		return o.recordDocumentFailure(j, "extract.Pages", docID, err)
	}
	doc.PageCount = len(pages)

	segments, err := boundary.Detect(pages, boundary.Options{
		SoftThreshold:       o.cfg.Boundary.SoftThreshold,
		OCRRelaxationFactor: o.cfg.Boundary.OCRRelaxationFactor,
		GapFillConfidence:   o.cfg.Boundary.GapFillConfidence,
	})
	if err != nil {
		return o.recordDocumentFailure(j, "boundary.Detect", docID, err)
	}
	for i := range segments {
		segments[i].DocumentID = docID
		segments[i].CaseName = req.CaseName
	}

	primaryType := discovery.Other
	if len(segments) > 0 {
		primaryType = segments[0].DocumentType
	}
	metadataHash := registry.MetadataHash(f.Name, doc.SizeBytes, len(segments), primaryType)
	if err := o.registry.PersistDocument(ctx, doc, metadataHash); err != nil {
		return o.recordDocumentFailure(j, "registry.PersistDocument", docID, err)
	}

	var batesRange *string
	var foundConfidence float64
	if len(segments) > 0 {
		foundConfidence = segments[0].Confidence
		if segments[0].BatesRange != nil {
			r := fmt.Sprintf("%s-%s", segments[0].BatesRange.Start, segments[0].BatesRange.End)
			batesRange = &r
		}
	}
	o.publish(j, bus.DocumentFound, bus.DocumentFoundPayload{
		DocumentID:   docID,
		Title:        f.Name,
		DocumentType: string(primaryType),
		PageCount:    doc.PageCount,
		BatesRange:   batesRange,
		Confidence:   foundConfidence,
	})

	if len(segments) == 0 {
		j.addTotals(func(t *discovery.JobTotals) { t.DocsProcessed++ })
		return nil
	}

	budget := newDocumentBudget(len(segments), o.cfg.DocumentFailureRateThreshold)

	segmentsPerDoc := o.cfg.Concurrency.SegmentsPerDoc
	if segmentsPerDoc <= 0 {
		segmentsPerDoc = 8
	}
	sem := make(chan struct{}, segmentsPerDoc)
	done := make(chan struct{}, len(segments))
	var infraErr error
	var infraMu sync.Mutex

	for _, seg := range segments {
		seg := seg
		if ctx.Err() != nil || budget.aborted() {
			done <- struct{}{}
			continue
		}
		go func() {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				done <- struct{}{}
				return
			}
			if budget.aborted() {
				done <- struct{}{}
				return
			}
			if err := o.processSegment(ctx, j, req, doc, pages, seg); err != nil {
				o.recordSegmentFailure(j, docID, seg.ID, err)
				if discovery.Kind(err) == discovery.KindBackendUnavailable {
					infraMu.Lock()
					if infraErr == nil {
						infraErr = err
					}
					infraMu.Unlock()
				} else {
					budget.recordFailure()
				}
			}
			done <- struct{}{}
		}()
	}
	for range segments {
		<-done
	}

	j.addTotals(func(t *discovery.JobTotals) { t.DocsProcessed++ })

	infraMu.Lock()
	defer infraMu.Unlock()
	return infraErr
}

// processSegment extracts text, classifies, chunks, encodes, upserts, and
// (if enabled) extracts facts for one segment (spec §4.1 step 3.d).
func (o *Orchestrator) processSegment(ctx context.Context, j *job, req JobRequest, doc discovery.Document, pages []boundary.PageFeatures, seg discovery.Segment) error {
	text, offsets, needsOCR := extract.SegmentText(pages, seg)
	seg.NeedsOCR = needsOCR

	classifyCtx, cancel := context.WithTimeout(ctx, nonZero(o.cfg.Timeouts.Classification, 30*time.Second))
	// Classify always returns a usable Segment even when the LLM fallback
	// errors: it carries the deterministic result forward rather than
	// failing the segment outright, so the error here is informational
	// only and folds into the segment's recorded confidence.
	classified, _ := classify.Classify(classifyCtx, seg, text, lastLines(text, 5), o.classifier, classify.Config{
		ConfidenceThreshold: o.cfg.Classify.ConfidenceThreshold,
		HeaderLines:         o.cfg.Classify.HeaderLines,
	})
	cancel()
	seg = classified

	if err := o.recordAuxSummary(ctx, req.CaseName, doc, seg, text); err != nil {
		o.recordSegmentFailure(j, doc.ID, seg.ID, fmt.Errorf("vectorstore.UpsertAuxRecord: %w", err))
	}

	extras := extract.ChunkExtras{}
	if req.ProductionMetadata != nil {
		extras.ProductionBatch = req.ProductionMetadata["productionBatch"]
		extras.ProducingParty = req.ProductionMetadata["producingParty"]
	}
	chunks := extract.BuildChunks(seg, text, offsets, req.CaseName, doc.ID, extras, extract.Config{
		TargetTokens:  o.cfg.Chunk.TargetTokens,
		OverlapTokens: o.cfg.Chunk.OverlapTokens,
	})
	o.publish(j, bus.SegmentChunking, bus.SegmentChunkingPayload{DocumentID: doc.ID, SegmentID: seg.ID, ChunksCreated: len(chunks), Progress: 1.0})

	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embedCtx, cancel := context.WithTimeout(ctx, nonZero(o.cfg.Timeouts.EmbeddingBatch, 60*time.Second))
	dense, err := encode.Dense(embedCtx, o.embedder, texts, encode.DenseConfig{
		Dim:       o.cfg.Encode.EmbeddingDim,
		BatchSize: o.cfg.Encode.EmbedBatchSize,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("encode.Dense: %w", err)
	}
	o.publish(j, bus.SegmentEmbedding, bus.SegmentEmbeddingPayload{DocumentID: doc.ID, SegmentID: seg.ID, Progress: 1.0})

	for i := range chunks {
		chunks[i].ID = vectorstore.ChunkID(string(req.CaseName), doc.ID, seg.ID, chunks[i].Ordinal)
		chunks[i].DenseVector = dense[i]
		chunks[i].SparseKeywords = encode.Keyword(chunks[i].Text, encode.KeywordConfig{MaxEntries: o.cfg.Encode.SparseMaxEntries})
		chunks[i].SparseCitations = encode.Citation(chunks[i].Text)

		flags := encode.DeriveFlags(chunks[i].Text)
		chunks[i].Metadata.HasCitations = flags.HasCitations
		chunks[i].Metadata.CitationCount = flags.CitationCount
		chunks[i].Metadata.HasMonetary = flags.HasMonetary
		chunks[i].Metadata.HasDates = flags.HasDates
	}

	if err := o.store.UpsertChunks(ctx, string(req.CaseName), chunks, o.cfg.Retry); err != nil {
		if discovery.Kind(err) == discovery.KindTransient {
			return discovery.NewError(discovery.KindBackendUnavailable, "vector store unreachable after retry budget", err)
		}
		return fmt.Errorf("vectorstore.UpsertChunks: %w", err)
	}
	o.publish(j, bus.SegmentStored, bus.SegmentStoredPayload{DocumentID: doc.ID, SegmentID: seg.ID, VectorsStored: len(chunks)})
	j.addTotals(func(t *discovery.JobTotals) { t.ChunksStored += len(chunks) })

	if req.EnableFactExtraction && o.facts != nil {
		for _, c := range chunks {
			extracted, err := o.facts.ExtractChunk(ctx, req.CaseName, seg.DocumentType, c)
			if err != nil {
				o.recordSegmentFailure(j, doc.ID, seg.ID, fmt.Errorf("facts.ExtractChunk: %w", err))
				continue
			}
			for _, fct := range extracted {
				o.publish(j, bus.FactExtracted, bus.FactExtractedPayload{DocumentID: doc.ID, FactID: fct.ID, Category: fct.Category, Confidence: fct.Confidence})
			}
			j.addTotals(func(t *discovery.JobTotals) { t.FactsExtracted += len(extracted) })
		}
	}

	return nil
}

// depositionSummary is the denormalized record stored in <case>_depositions
// (spec §4.6), grounded on the original implementation's exhibit/deposition
// indexers: one row per document, keyed on documentId, refreshed every time
// a Deposition segment is (re)classified.
type depositionSummary struct {
	DocumentID string                `json:"documentId"`
	Title      string                `json:"title"`
	PageStart  int                   `json:"pageStart"`
	PageEnd    int                   `json:"pageEnd"`
	BatesRange *discovery.BatesRange `json:"batesRange,omitempty"`
	Confidence float64               `json:"confidence"`
}

// exhibitSummary is the <case>_exhibits analog of depositionSummary.
type exhibitSummary struct {
	DocumentID string                `json:"documentId"`
	Title      string                `json:"title"`
	PageStart  int                   `json:"pageStart"`
	PageEnd    int                   `json:"pageEnd"`
	BatesRange *discovery.BatesRange `json:"batesRange,omitempty"`
	Confidence float64               `json:"confidence"`
}

// timelineEntry is one dated event candidate stored in <case>_timeline,
// keyed on segmentId so re-processing the same segment overwrites rather
// than duplicates its entry.
type timelineEntry struct {
	SegmentID    string                 `json:"segmentId"`
	DocumentID   string                 `json:"documentId"`
	DocumentType discovery.DocumentType `json:"documentType"`
	PageStart    int                    `json:"pageStart"`
	PageEnd      int                    `json:"pageEnd"`
	BatesRange   *discovery.BatesRange  `json:"batesRange,omitempty"`
}

// recordAuxSummary opportunistically populates the denormalized aux
// collections (spec §4.6: "<case>_depositions, <case>_exhibits,
// <case>_timeline") once a segment's documentType is known. Failures here
// never abort the segment: these collections are query conveniences, not
// the authoritative chunk/fact store.
func (o *Orchestrator) recordAuxSummary(ctx context.Context, caseName discovery.CaseName, doc discovery.Document, seg discovery.Segment, text string) error {
	switch seg.DocumentType {
	case discovery.Deposition:
		return o.store.UpsertAuxRecord(ctx, string(caseName), vectorstore.CollDepositions, doc.ID, depositionSummary{
			DocumentID: doc.ID, Title: doc.FileName, PageStart: seg.StartPage, PageEnd: seg.EndPage,
			BatesRange: seg.BatesRange, Confidence: seg.Confidence,
		})
	case discovery.Exhibit:
		return o.store.UpsertAuxRecord(ctx, string(caseName), vectorstore.CollExhibits, doc.ID, exhibitSummary{
			DocumentID: doc.ID, Title: doc.FileName, PageStart: seg.StartPage, PageEnd: seg.EndPage,
			BatesRange: seg.BatesRange, Confidence: seg.Confidence,
		})
	}

	if encode.DeriveFlags(text).HasDates {
		return o.store.UpsertAuxRecord(ctx, string(caseName), vectorstore.CollTimeline, seg.ID, timelineEntry{
			SegmentID: seg.ID, DocumentID: doc.ID, DocumentType: seg.DocumentType,
			PageStart: seg.StartPage, PageEnd: seg.EndPage, BatesRange: seg.BatesRange,
		})
	}
	return nil
}

func (o *Orchestrator) recordDocumentFailure(j *job, stage, documentID string, err error) error {
	j.addError(discovery.JobError{DocumentID: documentID, Stage: stage, Message: err.Error()})
	return err
}

func (o *Orchestrator) recordSegmentFailure(j *job, documentID, segmentID string, err error) {
	j.addError(discovery.JobError{DocumentID: documentID, SegmentID: segmentID, Stage: "segment", Message: err.Error()})
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
