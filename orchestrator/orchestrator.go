// Package orchestrator drives one ProcessingJob to completion (spec.md
// §4.1): bounded per-file and per-segment concurrency, progress publication
// over the bus, case-isolated persistence, and cooperative cancellation.
// The concurrency shape (semaphore + WaitGroup, per-unit timeout context,
// mutex-guarded error accumulation) is grounded in the teacher's
// graph.Builder.Build.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casegraph/discovery"
	"github.com/casegraph/discovery/boundary"
	"github.com/casegraph/discovery/bus"
	"github.com/casegraph/discovery/classify"
	"github.com/casegraph/discovery/encode"
	"github.com/casegraph/discovery/extract"
	"github.com/casegraph/discovery/facts"
	"github.com/casegraph/discovery/registry"
	"github.com/casegraph/discovery/vectorstore"
)

// PageProvider is the PDF text/page feature provider of spec §6.3: a pure
// function over raw bytes. Exposed as a field so tests can swap in
// synthetic page streams without parsing real PDF bytes.
type PageProvider func(pdfBytes []byte) ([]boundary.PageFeatures, error)

// AccessOracle is the auth/case-access collaborator of spec §6.3:
// canAccess(caseName, userId, perm) -> bool.
type AccessOracle interface {
	CanAccess(caseName discovery.CaseName, userID, perm string) bool
}

// allowAllAccess is the permissive default used when no oracle is wired,
// matching single-tenant/dev deployments.
type allowAllAccess struct{}

func (allowAllAccess) CanAccess(discovery.CaseName, string, string) bool { return true }

// Orchestrator coordinates every component call for a ProcessingJob. It
// holds no package-level state; one Orchestrator is built into the
// process's Services value at startup (spec §9).
type Orchestrator struct {
	cfg      discovery.Config
	store    *vectorstore.Store
	registry *registry.Registry
	bus      *bus.Bus
	access   AccessOracle

	classifier classify.Classifier // may be nil: deterministic-only
	embedder   encode.Embedder
	facts      *facts.Extractor // may be nil: fact extraction disabled entirely
	pages      PageProvider

	mu   sync.Mutex
	jobs map[string]*job
}

// New builds an Orchestrator. classifier and factExtractor may be nil to
// run deterministic-classification-only / no-fact-extraction
// configurations; embedder is required.
func New(cfg discovery.Config, store *vectorstore.Store, reg *registry.Registry, progressBus *bus.Bus, classifier classify.Classifier, embedder encode.Embedder, factExtractor *facts.Extractor, access AccessOracle) *Orchestrator {
	if access == nil {
		access = allowAllAccess{}
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		registry:   reg,
		bus:        progressBus,
		access:     access,
		classifier: classifier,
		embedder:   embedder,
		facts:      factExtractor,
		pages:      extract.Pages,
		jobs:       make(map[string]*job),
	}
}

// Submit validates case access, registers a Queued job, and runs it in the
// background. It returns immediately with the processingId (spec §4.1).
func (o *Orchestrator) Submit(ctx context.Context, req JobRequest, userID string) (string, error) {
	if req.CaseName == "" {
		return "", discovery.NewError(discovery.KindInputInvalid, "caseName is required", nil)
	}
	if !o.access.CanAccess(req.CaseName, userID, "write") {
		return "", discovery.NewError(discovery.KindAccessDenied, fmt.Sprintf("user %s may not write to case %s", userID, req.CaseName), nil)
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())
	j := newJob(id, req.CaseName, cancel)

	o.mu.Lock()
	o.jobs[id] = j
	o.mu.Unlock()

	go o.run(runCtx, j, req)

	return id, nil
}

// Status returns a point-in-time snapshot of a job, or false if unknown
// (spec §4.1 "Status(processingId) -> ProcessingJob snapshot").
func (o *Orchestrator) Status(processingID string) (discovery.ProcessingJob, bool) {
	o.mu.Lock()
	j, ok := o.jobs[processingID]
	o.mu.Unlock()
	if !ok {
		return discovery.ProcessingJob{}, false
	}
	return j.snapshot(), true
}

// Cancel transitions a Running (or Queued) job to Cancelled at the next
// cooperative cancellation point (spec §4.1). In-flight component calls
// finish their smallest atomic unit rather than being interrupted mid-call.
func (o *Orchestrator) Cancel(processingID string) error {
	o.mu.Lock()
	j, ok := o.jobs[processingID]
	o.mu.Unlock()
	if !ok {
		return discovery.ErrJobNotFound
	}

	switch j.state() {
	case discovery.JobCompleted, discovery.JobFailed, discovery.JobCancelled:
		return nil
	}

	j.cancel()
	j.finish(discovery.JobCancelled, "")
	o.publish(j, bus.JobCancelled, bus.JobCancelledPayload{Reason: "cancelled by caller"})
	return nil
}

func (o *Orchestrator) publish(j *job, evType bus.EventType, payload interface{}) {
	topic := bus.Topic(string(j.snap.CaseName), j.snap.ID)
	o.bus.Publish(topic, evType, payload)
}

// run drives one job to a terminal state. Per-file and per-segment errors
// are accumulated into Job.errors rather than aborting the job; only a
// KindBackendUnavailable error (vector store unreachable after its retry
// budget) cancels every in-flight unit and fails the job (spec §4.1).
func (o *Orchestrator) run(ctx context.Context, j *job, req JobRequest) {
	start := time.Now()
	j.setState(discovery.JobRunning)
	j.addTotals(func(t *discovery.JobTotals) { t.FilesFound += len(req.Files) })
	o.publish(j, bus.JobStarted, bus.JobStartedPayload{TotalFiles: len(req.Files)})

	filesPerJob := o.cfg.Concurrency.FilesPerJob
	if filesPerJob <= 0 {
		filesPerJob = 4
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, filesPerJob)
	var infraErr error
	var infraErrOnce sync.Once

	for _, f := range req.Files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(f FileInput) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := o.processFile(ctx, j, req, f); err != nil {
				if discovery.Kind(err) == discovery.KindBackendUnavailable {
					infraErrOnce.Do(func() { infraErr = err })
					j.cancel()
				}
			}
		}(f)
	}
	wg.Wait()

	elapsed := time.Since(start).Seconds()

	switch {
	case infraErr != nil:
		j.finish(discovery.JobFailed, infraErr.Error())
		o.publish(j, bus.JobFailed, bus.JobFailedPayload{Stage: "ingest", Error: infraErr.Error()})
	case ctx.Err() != nil:
		// Already transitioned to Cancelled by Cancel(), or the parent
		// context was cancelled independently.
		j.finish(discovery.JobCancelled, "")
	default:
		j.finish(discovery.JobCompleted, "")
		o.publish(j, bus.JobCompleted, bus.JobCompletedPayload{Totals: j.snapshot().Totals, ElapsedSeconds: elapsed})
	}
}
