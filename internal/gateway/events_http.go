package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
	"github.com/drblury/chargestream/internal/gateway/jsoncodec"
	loggingpkg "github.com/drblury/chargestream/internal/gateway/logging"
)

// handleEvents serves the live record stream as Server-Sent Events. A client
// resumes by sending its last delivered sequence, either as the standard
// Last-Event-ID header or as the "from" query parameter; history that already
// left the ring yields 410 Gone so the client knows records are unavailable
// rather than silently skipped.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.handleCORSPreflight(w, r) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	after, err := resumeSequence(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Description: descriptionInvalidSequence})
		return
	}

	sub, err := s.subscribers.Subscribe(after)
	if err != nil {
		if errors.Is(err, errspkg.ErrSequenceEvicted) {
			s.writeJSON(w, http.StatusGone, errorBody{Description: descriptionSequenceEvicted})
			return
		}
		s.Logger.Error("Failed to subscribe event stream", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	s.metrics.SetLiveSubscribers(s.subscribers.Count())
	s.Logger.Info("Event stream subscriber connected", loggingpkg.LogFields{
		"subscriber_id":  sub.ID(),
		"after_sequence": after,
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Reconnect hint, sent once per stream.
	fmt.Fprintf(w, "retry: %d\n\n", s.Conf.RetryInterval.Milliseconds())
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, open := <-sub.C():
			if !open {
				// Dropped by the manager for falling behind.
				s.Logger.Error("Event stream subscriber dropped", errspkg.ErrSubscriberClosed, loggingpkg.LogFields{
					"subscriber_id": sub.ID(),
				})
				return
			}
			data, err := jsoncodec.Marshal(rec)
			if err != nil {
				s.Logger.Error("Failed to encode stream record", err, loggingpkg.LogFields{
					"sequence": rec.Sequence,
				})
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", rec.Sequence, rec.Kind, data); err != nil {
				s.Logger.Debug("Event stream subscriber disconnected", loggingpkg.LogFields{
					"subscriber_id": sub.ID(),
				})
				return
			}
			flusher.Flush()
		}
	}
}

// resumeSequence extracts the client's last delivered sequence from the
// request. Zero means a fresh stream from the earliest retained record.
func resumeSequence(r *http.Request) (uint64, error) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("from")
	}
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
