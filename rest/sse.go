package rest

import (
	"encoding/json"
	"net/http"

	"bitbucket.org/kleinnic74/pinboard/domain"
	"bitbucket.org/kleinnic74/pinboard/events"
	"bitbucket.org/kleinnic74/pinboard/logging"
	"github.com/gorilla/mux"
)

// SSEHandler streams store change events to clients as server-sent
// events. A client sees no events from before its subscription and must
// fetch current state first.
type SSEHandler struct {
	events *events.Stream
}

func NewSSEHandler(stream *events.Stream) *SSEHandler {
	return &SSEHandler{
		events: stream,
	}
}

func (e *SSEHandler) InitRoutes(router *mux.Router) {
	router.HandleFunc("/eventstream", e.listen).Methods(http.MethodGet).Name("/eventstream")
}

func (e *SSEHandler) listen(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Warn("HTTP Flusher not supported")
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	e.events.Listen(r.Context(), func(event domain.Change) {
		if err := json.NewEncoder(w).Encode(event); err != nil {
			return
		}
		flusher.Flush()
	})
}
