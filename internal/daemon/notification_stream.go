package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"panotrack/internal/events"
	"panotrack/internal/logging"
)

const streamKeepAlive = 25 * time.Second

// handleNotifications streams notification.send signals as server-sent
// events. topic=* streams every signal. Clients resume with Last-Event-ID or
// the since query parameter.
func (s *apiServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	bus := s.daemon.bus
	topic := events.TopicNotificationSend
	if value := r.URL.Query().Get("topic"); value != "" {
		topic = value
	}
	since := bus.LastSequence()
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			since = parsed
		}
	} else if raw := r.URL.Query().Get("since"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			since = parsed
		}
	}

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	clientID := uuid.NewString()
	logger := s.logger.With(logging.String("client", clientID), logging.String("topic", topic))
	logger.Debug("notification stream opened")
	defer logger.Debug("notification stream closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected %s\n\n", clientID)
	flusher.Flush()

	ctx := r.Context()
	for {
		waitCtx, cancel := context.WithTimeout(ctx, streamKeepAlive)
		batch, next, err := bus.Fetch(waitCtx, since, 0, true)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil && len(batch) == 0 {
			// Keep-alive interval elapsed.
			if _, werr := fmt.Fprint(w, ": keep-alive\n\n"); werr != nil {
				return
			}
			flusher.Flush()
			continue
		}
		if len(batch) == 0 {
			// Bus closed.
			return
		}
		for _, evt := range batch {
			if topic != events.TopicAll && evt.Topic != topic {
				continue
			}
			if err := writeEvent(w, evt); err != nil {
				return
			}
		}
		flusher.Flush()
		since = next
	}
}

func writeEvent(w http.ResponseWriter, evt events.Event) error {
	data := evt.Payload
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Topic, data)
	return err
}
