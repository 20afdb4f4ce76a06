// Package registry owns the attached engines and resolves charge box
// identities across them. Engines are attached once at startup and never
// detached; the registry only ever reads their station views.
package registry

import (
	"sync"

	"github.com/drblury/chargestream/internal/gateway/engine"
	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
)

// MaxChargeBoxIDLength bounds identity tokens. OCPP charge box identities
// are short; anything longer is rejected before a registry scan happens.
const MaxChargeBoxIDLength = 255

// Registry maps engine identity to engine handle and resolves charge boxes
// across all attached engines in attachment order.
type Registry struct {
	mu    sync.RWMutex
	order []engine.Engine
	byID  map[string]engine.Engine
}

func New() *Registry {
	return &Registry{byID: make(map[string]engine.Engine)}
}

// Attach registers the engine and reports whether it was newly attached.
// Attaching the same engine identity twice is a no-op.
func (r *Registry) Attach(e engine.Engine) (bool, error) {
	if e == nil {
		return false, errspkg.ErrEngineRequired
	}
	if e.ID() == "" {
		return false, errspkg.ErrEngineIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[e.ID()]; ok {
		return false, nil
	}
	r.byID[e.ID()] = e
	r.order = append(r.order, e)
	return true, nil
}

// Engines returns the attached engines in attachment order.
func (r *Registry) Engines() []engine.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]engine.Engine, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve finds the charge box record for chargeBoxID. With an empty
// engineID every attached engine is scanned in attachment order and the
// first match wins; otherwise only the named engine is consulted. A missing
// record yields ErrUnknownChargeBox.
func (r *Registry) Resolve(engineID, chargeBoxID string) (engine.ChargeBox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if engineID != "" {
		e, ok := r.byID[engineID]
		if !ok {
			return engine.ChargeBox{}, errspkg.ErrUnknownChargeBox
		}
		return findChargeBox(e, chargeBoxID)
	}

	for _, e := range r.order {
		if cb, err := findChargeBox(e, chargeBoxID); err == nil {
			return cb, nil
		}
	}
	return engine.ChargeBox{}, errspkg.ErrUnknownChargeBox
}

func findChargeBox(e engine.Engine, chargeBoxID string) (engine.ChargeBox, error) {
	for _, cb := range e.ChargeBoxes() {
		if cb.ID == chargeBoxID {
			return cb, nil
		}
	}
	return engine.ChargeBox{}, errspkg.ErrUnknownChargeBox
}

// ChargeBoxes returns a flattened view of every station across all attached
// engines. Order between engines follows attachment order; callers must not
// rely on it.
func (r *Registry) ChargeBoxes() []engine.ChargeBox {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []engine.ChargeBox
	for _, e := range r.order {
		out = append(out, e.ChargeBoxes()...)
	}
	return out
}

// ChargeBoxIDs returns the identities of every station across all attached
// engines.
func (r *Registry) ChargeBoxIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, e := range r.order {
		for _, cb := range e.ChargeBoxes() {
			out = append(out, cb.ID)
		}
	}
	return out
}

// Count returns the number of attached engines and the total number of
// charge boxes they own.
func (r *Registry) Count() (engines, chargeBoxes int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engines = len(r.order)
	for _, e := range r.order {
		chargeBoxes += len(e.ChargeBoxes())
	}
	return engines, chargeBoxes
}

// ParseChargeBoxID validates the syntactic form of an identity token before
// any registry lookup. Valid identities are 1..255 bytes of letters, digits
// and ".", "-", "_", ":". Anything else short-circuits with
// ErrInvalidChargeBoxID so malformed tokens never reach an engine scan.
func ParseChargeBoxID(raw string) (string, error) {
	if raw == "" || len(raw) > MaxChargeBoxIDLength {
		return "", errspkg.ErrInvalidChargeBoxID
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '_' || c == ':':
		default:
			return "", errspkg.ErrInvalidChargeBoxID
		}
	}
	return raw, nil
}
