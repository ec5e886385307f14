package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/casegraph/discovery/bus"
)

var upgrader = websocket.Upgrader{
	// Cross-origin checks are handled by corsMiddleware at the HTTP layer;
	// the websocket upgrade itself accepts any origin the outer chain let
	// through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// helloFrame is the first frame sent on every subscription (spec §6.2:
// "The server sends a hello { lastSeq } on subscribe; clients reconcile
// with a Status call for any missed range.").
type helloFrame struct {
	Type    string `json:"type"`
	LastSeq uint64 `json:"lastSeq"`
}

// GET /discovery/progress/{processingId}
//
// Upgrades to a websocket and streams the job's progress events verbatim
// as { seq, ts, type, payload } frames (spec §6.2). The connection closes
// once a terminal event (job.completed/failed/cancelled) has been sent.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("processingId")
	snap, ok := s.svc.Orchestrator.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "processing job not found")
		return
	}

	topic := bus.Topic(string(snap.CaseName), id)
	sub := s.svc.Bus.Subscribe(topic)
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("progress: websocket upgrade failed", "error", err, "processingId", id)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(helloFrame{Type: "hello", LastSeq: sub.LastSeq}); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	go drainClientFrames(conn)

	for ev := range sub.Events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
		if bus.IsTerminal(ev.Type) {
			return
		}
	}
}

// drainClientFrames discards any client-sent frames (this channel is
// server-to-client only) but keeps reading so gorilla/websocket's control
// frame (ping/close) handling runs; it returns once the connection errors
// or closes, at which point handleProgress's write loop will also fail
// and exit.
func drainClientFrames(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
