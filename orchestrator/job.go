package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/casegraph/discovery"
)

// FileInput is one file submitted for processing (spec §4.1 JobRequest:
// "files ([]{name, bytes})").
type FileInput struct {
	Name  string
	Bytes []byte
}

// JobRequest is the input to Submit (spec §4.1).
type JobRequest struct {
	CaseName                 discovery.CaseName
	Files                    []FileInput
	ProductionMetadata       map[string]string
	EnableFactExtraction     bool
	EnableDeficiencyAnalysis bool
	RTPDocumentID            string
	OCResponseDocumentID     string
}

// job is the runtime wrapper around the externally-visible
// discovery.ProcessingJob snapshot plus the cancellation token that drives
// cooperative cancellation (spec §5: "a cooperative cancellation token
// propagated through every component call").
type job struct {
	mu     sync.Mutex
	snap   discovery.ProcessingJob
	cancel context.CancelFunc
}

func newJob(id string, caseName discovery.CaseName, cancel context.CancelFunc) *job {
	return &job{
		snap: discovery.ProcessingJob{
			ID:        id,
			CaseName:  caseName,
			State:     discovery.JobQueued,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}
}

func (j *job) snapshot() discovery.ProcessingJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := j.snap
	snap.Errors = append([]discovery.JobError(nil), j.snap.Errors...)
	return snap
}

func (j *job) setState(s discovery.JobState) {
	j.mu.Lock()
	j.snap.State = s
	j.mu.Unlock()
}

func (j *job) state() discovery.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap.State
}

func (j *job) addError(e discovery.JobError) {
	j.mu.Lock()
	j.snap.Errors = append(j.snap.Errors, e)
	j.snap.Totals.Errors++
	j.mu.Unlock()
}

func (j *job) addTotals(fn func(*discovery.JobTotals)) {
	j.mu.Lock()
	fn(&j.snap.Totals)
	j.mu.Unlock()
}

func (j *job) finish(state discovery.JobState, lastErr string) {
	j.mu.Lock()
	if j.snap.State == discovery.JobCancelled {
		// Cancellation already recorded the terminal state; don't
		// overwrite it with a later completion/failure race.
		j.mu.Unlock()
		return
	}
	j.snap.State = state
	now := time.Now()
	j.snap.CompletedAt = &now
	j.snap.LastError = lastErr
	j.mu.Unlock()
}
