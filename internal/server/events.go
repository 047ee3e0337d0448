package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/logfields"
)

// handleEvents streams session change notifications as Server-Sent Events.
// The stream closes after streamTimeout without a change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	changes, unsubscribe := s.store.Subscribe(16)
	defer unsubscribe()

	s.logger.Debug("Event stream opened", logfields.RemoteAddr(r.RemoteAddr))
	s.sendEvent(w, flusher, "connected", events.Change{Generation: s.store.Result().Generation, At: s.clock.Now()})

	timer := s.clock.NewTimer(s.streamTimeout)
	defer timer.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("Event stream closed (client disconnect)", logfields.RemoteAddr(r.RemoteAddr))
			return
		case <-timer.Chan():
			s.sendEvent(w, flusher, "timeout", events.Change{At: s.clock.Now()})
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			s.sendEvent(w, flusher, "change", c)
			timer.Reset(s.streamTimeout)
		}
	}
}

func (s *Server) sendEvent(w http.ResponseWriter, f http.Flusher, name string, c events.Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		s.logger.Error("Failed to marshal SSE event", logfields.Error(err))
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	f.Flush()
}
