package gateway

import (
	"errors"
	"net/http"
	"strings"

	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
	"github.com/drblury/chargestream/internal/gateway/jsoncodec"
	loggingpkg "github.com/drblury/chargestream/internal/gateway/logging"
	registrypkg "github.com/drblury/chargestream/internal/gateway/registry"
	transportpkg "github.com/drblury/chargestream/internal/gateway/transport"
)

// errorBody is the JSON error envelope of the HTTP surface.
type errorBody struct {
	Description string `json:"description"`
}

const (
	descriptionUnknownChargeBox = "Unknown charge box identification!"
	descriptionInvalidChargeBox = "Invalid charge box identification!"
	descriptionSequenceEvicted  = "Requested sequence is no longer retained!"
	descriptionInvalidSequence  = "Invalid sequence number!"
)

// chargeBoxRef is the identity-only projection returned by /chargeBoxIds.
type chargeBoxRef struct {
	ID string `json:"@id"`
}

// statusReport is the introspection document served on /status.
type statusReport struct {
	Engines       int                       `json:"engines"`
	ChargeBoxes   int                       `json:"chargeBoxes"`
	RingRecords   int                       `json:"ringRecords"`
	RingCapacity  int                       `json:"ringCapacity"`
	NextSequence  uint64                    `json:"nextSequence"`
	Subscribers   int                       `json:"subscribers"`
	Transport     string                    `json:"transport"`
	Capabilities  transportpkg.Capabilities `json:"capabilities"`
	MirrorDir     string                    `json:"mirrorDir"`
	RetryInterval string                    `json:"retryInterval"`
}

func (s *Service) registerAPIHandlers() {
	port := s.Conf.APIPort

	s.RegisterHTTPHandler(port, "/chargeBoxIds", http.HandlerFunc(s.handleChargeBoxIDs))
	s.RegisterHTTPHandler(port, "/chargeBoxes", http.HandlerFunc(s.handleChargeBoxes))
	s.RegisterHTTPHandler(port, "/chargeBoxes/{chargeBoxId}", http.HandlerFunc(s.handleChargeBox))
	s.RegisterHTTPHandler(port, "/events", http.HandlerFunc(s.handleEvents))
	s.RegisterHTTPHandler(port, "/status", http.HandlerFunc(s.handleStatus))
}

// handleChargeBoxIDs lists the identities of every charge box across all
// attached engines, in attach-then-engine order.
func (s *Service) handleChargeBoxIDs(w http.ResponseWriter, r *http.Request) {
	if s.handleCORSPreflight(w, r) {
		return
	}

	ids := s.registry.ChargeBoxIDs()
	refs := make([]chargeBoxRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, chargeBoxRef{ID: id})
	}
	s.writeJSON(w, http.StatusOK, refs)
}

// handleChargeBoxes lists the full station records of every attached engine.
func (s *Service) handleChargeBoxes(w http.ResponseWriter, r *http.Request) {
	if s.handleCORSPreflight(w, r) {
		return
	}

	s.writeJSON(w, http.StatusOK, s.registry.ChargeBoxes())
}

// handleChargeBox resolves one charge box by identification. Malformed
// identifications are rejected before any engine is consulted.
func (s *Service) handleChargeBox(w http.ResponseWriter, r *http.Request) {
	if s.handleCORSPreflight(w, r) {
		return
	}

	id, err := registrypkg.ParseChargeBoxID(r.PathValue("chargeBoxId"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Description: descriptionInvalidChargeBox})
		return
	}

	box, err := s.registry.Resolve("", id)
	if err != nil {
		if errors.Is(err, errspkg.ErrUnknownChargeBox) {
			s.writeJSON(w, http.StatusNotFound, errorBody{Description: descriptionUnknownChargeBox})
			return
		}
		s.Logger.Error("Failed to resolve charge box", err, loggingpkg.LogFields{"charge_box_id": id})
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, box)
}

// handleStatus reports gateway internals for operators.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.handleCORSPreflight(w, r) {
		return
	}

	engines, chargeBoxes := s.registry.Count()
	s.writeJSON(w, http.StatusOK, statusReport{
		Engines:       engines,
		ChargeBoxes:   chargeBoxes,
		RingRecords:   s.log.Len(),
		RingCapacity:  s.log.Capacity(),
		NextSequence:  s.log.NextSequence(),
		Subscribers:   s.subscribers.Count(),
		Transport:     s.Conf.PubSubSystem,
		Capabilities:  transportpkg.GetCapabilities(s.Conf.PubSubSystem),
		MirrorDir:     s.mirror.Dir(),
		RetryInterval: s.Conf.RetryInterval.String(),
	})
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, v); err != nil {
		s.Logger.Error("Failed to encode response", err, nil)
	}
}

// handleCORSPreflight sets the CORS headers based on configuration and
// answers preflight requests. Returns true when the request is complete.
func (s *Service) handleCORSPreflight(w http.ResponseWriter, r *http.Request) bool {
	if s.Conf != nil && len(s.Conf.APICORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		allowedOrigin := s.getAllowedCORSOrigin(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the
// appropriate Access-Control-Allow-Origin value.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.APICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
