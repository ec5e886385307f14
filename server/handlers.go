package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/casegraph/discovery"
	"github.com/casegraph/discovery/bus"
	"github.com/casegraph/discovery/facts"
	"github.com/casegraph/discovery/orchestrator"
)

// processRequest is the literal wire shape of spec §6.1's ingest RPC body.
type processRequest struct {
	CaseName                 string            `json:"caseName"`
	Files                    []wireFile        `json:"files,omitempty"`
	RemoteFolderRef          string            `json:"remoteFolderRef,omitempty"`
	ProductionMetadata       map[string]string `json:"productionMetadata,omitempty"`
	EnableFactExtraction     bool              `json:"enableFactExtraction"`
	EnableDeficiencyAnalysis bool              `json:"enableDeficiencyAnalysis"`
	RTPDocumentID            string            `json:"rtpDocumentId,omitempty"`
	OCResponseDocumentID     string            `json:"ocResponseDocumentId,omitempty"`
}

// POST /discovery/process
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CaseName == "" {
		writeError(w, http.StatusBadRequest, "caseName is required")
		return
	}

	// Case identity is derived from X-Case-Id; the body caseName must
	// match or the request is rejected (spec §6.1).
	headerCase := r.Header.Get("X-Case-Id")
	if headerCase != "" && headerCase != req.CaseName {
		writeError(w, http.StatusConflict, "caseName does not match X-Case-Id header")
		return
	}

	var (
		files []orchestrator.FileInput
		err   error
	)
	switch {
	case req.RemoteFolderRef != "":
		files, err = s.source.Get(r.Context(), req.RemoteFolderRef)
		if err != nil {
			writeError(w, http.StatusBadRequest, "resolving remoteFolderRef: "+err.Error())
			return
		}
	case len(req.Files) > 0:
		files, err = decodeBase64Files(req.Files)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "either files or remoteFolderRef is required")
		return
	}

	jobReq := orchestrator.JobRequest{
		CaseName:                 discovery.CaseName(req.CaseName),
		Files:                    files,
		ProductionMetadata:       req.ProductionMetadata,
		EnableFactExtraction:     req.EnableFactExtraction,
		EnableDeficiencyAnalysis: req.EnableDeficiencyAnalysis,
		RTPDocumentID:            req.RTPDocumentID,
		OCResponseDocumentID:     req.OCResponseDocumentID,
	}

	processingID, err := s.svc.Orchestrator.Submit(r.Context(), jobReq, userIDFrom(r))
	if err != nil {
		writeDiscoveryError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"processingId":   processingID,
		"websocketTopic": bus.Topic(req.CaseName, processingID),
	})
}

// GET /discovery/status/{processingId}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("processingId")
	snap, ok := s.svc.Orchestrator.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "processing job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /discovery/cancel/{processingId}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("processingId")
	if err := s.svc.Orchestrator.Cancel(id); err != nil {
		if err == discovery.ErrJobNotFound {
			writeError(w, http.StatusNotFound, "processing job not found")
			return
		}
		writeDiscoveryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type editFactRequest struct {
	CaseName   string `json:"caseName"`
	DocumentID string `json:"documentId"`
	NewContent string `json:"newContent"`
	Reason     string `json:"reason"`
}

// POST /discovery/facts/{factId}/edit
func (s *Server) handleEditFact(w http.ResponseWriter, r *http.Request) {
	factID := r.PathValue("factId")
	var req editFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CaseName == "" || req.DocumentID == "" || req.NewContent == "" {
		writeError(w, http.StatusBadRequest, "caseName, documentId, and newContent are required")
		return
	}

	err := facts.EditFact(r.Context(), s.svc.Store, s.svc.EmbeddingProvider,
		req.CaseName, req.DocumentID, factID, req.NewContent, userIDFrom(r), req.Reason, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "edited"})
}

type deleteFactRequest struct {
	CaseName string `json:"caseName"`
	Reason   string `json:"reason"`
}

// POST /discovery/facts/{factId}/delete
func (s *Server) handleDeleteFact(w http.ResponseWriter, r *http.Request) {
	factID := r.PathValue("factId")
	var req deleteFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CaseName == "" {
		writeError(w, http.StatusBadRequest, "caseName is required")
		return
	}

	if err := facts.DeleteFact(r.Context(), s.svc.Store, req.CaseName, factID, userIDFrom(r), req.Reason, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeDiscoveryError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch discovery.Kind(err) {
	case discovery.KindInputInvalid:
		status = http.StatusBadRequest
	case discovery.KindAccessDenied:
		status = http.StatusForbidden
	case discovery.KindNotFound:
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
