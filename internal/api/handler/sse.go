package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/depotradar/depotradar/internal/api/response"
	"github.com/depotradar/depotradar/internal/progress"
)

// streamEvents writes progress events to the client as Server-Sent Events
// until the stream delivers its terminal event or the client disconnects.
// The producer drops log events on a full buffer, so abandoning the
// channel on disconnect never blocks the job.
func streamEvents(w http.ResponseWriter, r *http.Request, stream *progress.Stream) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, r, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable nginx buffering
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-stream.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
