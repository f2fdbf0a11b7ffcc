package progress

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"scribe/internal/logging"
)

// Handler streams a job's events as Server-Sent Events. The job id is read
// from the {id} path value. A ":heartbeat" comment is written every heartbeat
// interval to keep intermediaries from closing idle connections.
func (p *Publisher) Handler(heartbeat time.Duration) http.Handler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimSpace(r.PathValue("id"))
		if jobID == "" {
			http.Error(w, "job id required", http.StatusBadRequest)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		replacing := p.Listening(jobID)
		sub := p.Subscribe(jobID)
		defer sub.Close()
		p.logger.Debug("progress listener connected",
			logging.String(logging.FieldJobID, jobID),
			logging.Bool("replacing", replacing),
		)

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := w.Write([]byte(":heartbeat\n\n")); err != nil {
					return
				}
				flusher.Flush()
			case evt, ok := <-sub.Events:
				if !ok {
					return
				}
				data, err := json.Marshal(evt)
				if err != nil {
					p.logger.Warn("encode progress event failed", logging.Error(err))
					continue
				}
				if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}
