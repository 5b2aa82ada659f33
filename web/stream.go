package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/hazyhaar/beamscope/idgen"
)

// streamBoundary is the multipart boundary of the MJPEG stream. Kept
// stable because deployed viewers hard-code it.
const streamBoundary = "imagingsource"

// handleStream serves one MJPEG viewer session. Each session tracks the
// last version it wrote and waits for a newer one, so a slow client
// skips intermediate frames instead of queueing them, and two clients
// connecting at different times still observe identical bytes for the
// same version.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	session := idgen.New()
	s.met.StreamClients.Inc()
	defer s.met.StreamClients.Dec()
	s.logger.Info("web: stream session opened", "session", session, "remote", r.RemoteAddr)
	defer s.logger.Info("web: stream session closed", "session", session)

	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	var last uint64
	for {
		payload, version, err := s.pipe.Broadcaster().AwaitNewer(r.Context(), last)
		if err != nil {
			return
		}
		last = version

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
			streamBoundary, len(payload)); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return
		}
		fl.Flush()
	}
}
