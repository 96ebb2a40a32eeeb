package httpapi

import (
	"encoding/json"
	"net/http"
)

// handleEvents serves GET /v1/events as a server-sent event stream of live
// recipient activity. The connection stays open until the client leaves.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.identity(w, r); !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := a.stream.Subscribe(r.Context())
	for evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if _, err := w.Write([]byte("event: " + evt.Kind + "\ndata: " + string(data) + "\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
