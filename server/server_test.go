package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casegraph/discovery"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := discovery.DefaultConfig()
	cfg.StorageDir = t.TempDir()
	cfg.Encode.EmbeddingDim = 4

	svc, err := discovery.NewServices(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })

	return New(svc, nil)
}

func TestHandleProcess_ReturnsAcceptedWithProcessingId(t *testing.T) {
	s := testServer(t)
	h := s.Handler("", "")

	body, _ := json.Marshal(processRequest{
		CaseName: "smith-v-jones",
		Files: []wireFile{
			{Name: "depo.pdf", ContentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF-fake"))},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/discovery/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["processingId"] == "" {
		t.Fatal("expected a non-empty processingId")
	}
	if resp["websocketTopic"] != "case:smith-v-jones:job:"+resp["processingId"] {
		t.Fatalf("unexpected websocketTopic: %q", resp["websocketTopic"])
	}
}

func TestHandleProcess_CaseIdMismatchReturns409(t *testing.T) {
	s := testServer(t)
	h := s.Handler("", "")

	body, _ := json.Marshal(processRequest{CaseName: "smith-v-jones"})
	req := httptest.NewRequest(http.MethodPost, "/discovery/process", bytes.NewReader(body))
	req.Header.Set("X-Case-Id", "some-other-case")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleProcess_MissingCaseNameReturns400(t *testing.T) {
	s := testServer(t)
	h := s.Handler("", "")

	req := httptest.NewRequest(http.MethodPost, "/discovery/process", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleProcess_NoFilesOrRemoteRefReturns400(t *testing.T) {
	s := testServer(t)
	h := s.Handler("", "")

	body, _ := json.Marshal(processRequest{CaseName: "smith-v-jones"})
	req := httptest.NewRequest(http.MethodPost, "/discovery/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStatus_UnknownReturns404(t *testing.T) {
	s := testServer(t)
	h := s.Handler("", "")

	req := httptest.NewRequest(http.MethodGet, "/discovery/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleCancel_UnknownReturns404(t *testing.T) {
	s := testServer(t)
	h := s.Handler("", "")

	req := httptest.NewRequest(http.MethodPost, "/discovery/cancel/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleProcess_AuthMiddlewareRejectsMissingBearer(t *testing.T) {
	s := testServer(t)
	h := s.Handler("secret-key", "")

	body, _ := json.Marshal(processRequest{CaseName: "smith-v-jones"})
	req := httptest.NewRequest(http.MethodPost, "/discovery/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleEditFact_UpdatesContentAndHistory(t *testing.T) {
	s := testServer(t)
	h := s.Handler("", "")

	fact := discovery.Fact{
		ID:         "fact-1",
		CaseName:   "smith-v-jones",
		DocumentID: "doc-1",
		Content:    "original content",
		Category:   "incident",
	}
	if err := s.svc.Store.UpsertFact(context.Background(), fact, []float32{1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(editFactRequest{
		CaseName:   "smith-v-jones",
		DocumentID: "doc-1",
		NewContent: "corrected content",
		Reason:     "typo",
	})
	req := httptest.NewRequest(http.MethodPost, "/discovery/facts/fact-1/edit", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	facts, err := s.svc.Store.FactsByDocument(context.Background(), "smith-v-jones", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 || facts[0].Content != "corrected content" || len(facts[0].EditHistory) != 1 {
		t.Fatalf("expected updated content and one history entry, got %+v", facts)
	}
}
