package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/casegraph/discovery"
	"github.com/casegraph/discovery/boundary"
	"github.com/casegraph/discovery/bus"
	"github.com/casegraph/discovery/registry"
	"github.com/casegraph/discovery/vectorstore"
)

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func testOrchestrator(t *testing.T, pages PageProvider) (*Orchestrator, *vectorstore.Store) {
	t.Helper()
	store := vectorstore.New(vectorstore.Config{StorageDir: t.TempDir(), EmbeddingDim: 4})
	t.Cleanup(func() { store.Close() })

	cfg := discovery.DefaultConfig()
	cfg.Encode.EmbeddingDim = 4
	cfg.Retry = discovery.RetryConfig{MaxAttempts: 2, Ceiling: time.Second}

	reg := registry.New(store)
	progressBus := bus.New(64)

	o := New(cfg, store, reg, progressBus, nil, fakeEmbedder{dim: 4}, nil, nil)
	if pages != nil {
		o.pages = pages
	}
	return o, store
}

func depositionPage(n int) boundary.PageFeatures {
	return boundary.PageFeatures{
		PageNum:        n,
		Text:           "DEPOSITION OF JANE DOE\n\nQ. Please state your name.\nA. Jane Doe.\n",
		DominantFont:   "Times",
		FontSizes:      []float64{12},
		TextDensity:    0.5,
		BatesNumber:    "",
		StructuralHash: "h1",
	}
}

func waitForTerminal(t *testing.T, o *Orchestrator, id string, timeout time.Duration) discovery.ProcessingJob {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap, ok := o.Status(id)
		if !ok {
			t.Fatalf("job %s not found", id)
		}
		switch snap.State {
		case discovery.JobCompleted, discovery.JobFailed, discovery.JobCancelled:
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state within %s", id, timeout)
	return discovery.ProcessingJob{}
}

func TestSubmit_SingleDepositionCompletesAndStoresChunks(t *testing.T) {
	o, _ := testOrchestrator(t, func([]byte) ([]boundary.PageFeatures, error) {
		return []boundary.PageFeatures{depositionPage(0)}, nil
	})

	id, err := o.Submit(context.Background(), JobRequest{
		CaseName: "smith-v-jones",
		Files:    []FileInput{{Name: "depo.pdf", Bytes: []byte("%PDF-fake")}},
	}, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	snap := waitForTerminal(t, o, id, 5*time.Second)
	if snap.State != discovery.JobCompleted {
		t.Fatalf("expected Completed, got %s (lastError=%s)", snap.State, snap.LastError)
	}
	if snap.Totals.DocsProcessed != 1 {
		t.Fatalf("expected 1 doc processed, got %d", snap.Totals.DocsProcessed)
	}
	if snap.Totals.ChunksStored == 0 {
		t.Fatal("expected at least one chunk stored")
	}
	if snap.Totals.Errors != 0 {
		t.Fatalf("expected 0 errors, got %d: %+v", snap.Totals.Errors, snap.Errors)
	}
	if snap.Totals.FilesFound != 1 {
		t.Fatalf("expected filesFound=1, got %d", snap.Totals.FilesFound)
	}
	// Invariant #5: errors + docsProcessed <= filesFound.
	if snap.Totals.Errors+snap.Totals.DocsProcessed > snap.Totals.FilesFound {
		t.Fatalf("invariant violated: errors(%d)+docsProcessed(%d) > filesFound(%d)", snap.Totals.Errors, snap.Totals.DocsProcessed, snap.Totals.FilesFound)
	}
}

func TestSubmit_DuplicateIngestionInSameCaseIsSkipped(t *testing.T) {
	provider := func([]byte) ([]boundary.PageFeatures, error) {
		return []boundary.PageFeatures{depositionPage(0)}, nil
	}
	o, store := testOrchestrator(t, provider)
	_ = store

	bytes := []byte("%PDF-fake-identical-bytes")

	first, err := o.Submit(context.Background(), JobRequest{
		CaseName: "smith-v-jones",
		Files:    []FileInput{{Name: "depo.pdf", Bytes: bytes}},
	}, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	firstSnap := waitForTerminal(t, o, first, 5*time.Second)
	if firstSnap.State != discovery.JobCompleted {
		t.Fatalf("expected first job Completed, got %s", firstSnap.State)
	}

	second, err := o.Submit(context.Background(), JobRequest{
		CaseName: "smith-v-jones",
		Files:    []FileInput{{Name: "depo-copy.pdf", Bytes: bytes}},
	}, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	secondSnap := waitForTerminal(t, o, second, 5*time.Second)
	if secondSnap.State != discovery.JobCompleted {
		t.Fatalf("expected second job Completed, got %s", secondSnap.State)
	}
	if secondSnap.Totals.ChunksStored != 0 {
		t.Fatalf("expected duplicate ingest to store 0 new chunks, got %d", secondSnap.Totals.ChunksStored)
	}
}

func TestSubmit_AccessDeniedRejectsBeforeQueueing(t *testing.T) {
	o, _ := testOrchestrator(t, nil)
	o.access = denyAllAccess{}

	_, err := o.Submit(context.Background(), JobRequest{
		CaseName: "smith-v-jones",
		Files:    []FileInput{{Name: "depo.pdf", Bytes: []byte("x")}},
	}, "user-1")
	if err == nil {
		t.Fatal("expected access denied error")
	}
	if discovery.Kind(err) != discovery.KindAccessDenied {
		t.Fatalf("expected KindAccessDenied, got %v", discovery.Kind(err))
	}
}

type denyAllAccess struct{}

func (denyAllAccess) CanAccess(discovery.CaseName, string, string) bool { return false }

func TestCancel_TransitionsRunningJobToCancelled(t *testing.T) {
	block := make(chan struct{})
	release := make(chan struct{})
	provider := func([]byte) ([]boundary.PageFeatures, error) {
		close(block)
		<-release
		return []boundary.PageFeatures{depositionPage(0)}, nil
	}
	o, _ := testOrchestrator(t, provider)

	id, err := o.Submit(context.Background(), JobRequest{
		CaseName: "smith-v-jones",
		Files:    []FileInput{{Name: "depo.pdf", Bytes: []byte("x")}},
	}, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	<-block
	if err := o.Cancel(id); err != nil {
		t.Fatal(err)
	}
	close(release)

	snap := waitForTerminal(t, o, id, 5*time.Second)
	if snap.State != discovery.JobCancelled {
		t.Fatalf("expected Cancelled, got %s", snap.State)
	}

	// Cancel is idempotent.
	if err := o.Cancel(id); err != nil {
		t.Fatalf("second cancel should be a no-op, got %v", err)
	}
}

func TestCancel_UnknownJobReturnsNotFound(t *testing.T) {
	o, _ := testOrchestrator(t, nil)
	if err := o.Cancel("does-not-exist"); err != discovery.ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStatus_UnknownJobReportsNotFound(t *testing.T) {
	o, _ := testOrchestrator(t, nil)
	if _, ok := o.Status("does-not-exist"); ok {
		t.Fatal("expected ok=false for unknown job")
	}
}
