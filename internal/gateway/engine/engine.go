// Package engine defines the contract between the gateway and the backend
// protocol engines it observes. An engine owns a set of charge boxes and
// emits one typed occurrence per observed protocol event; the gateway never
// mutates an engine, it only reads its station view and listens.
package engine

import "time"

// Class partitions the occurrence catalog into its structural shapes. The
// Kind string stays free-form ("OnBootNotificationRequest", ...) because the
// catalog is large and engine-defined; Class tells the gateway which payload
// fields are meaningful.
type Class string

const (
	// ClassRequest is a protocol request observed on its way to the engine.
	ClassRequest Class = "request"
	// ClassResponse is a protocol response paired with its originating
	// request; Elapsed carries the processing duration.
	ClassResponse Class = "response"
	// ClassError is a failed request/response exchange; Err carries the
	// failure and Elapsed the time spent before failing.
	ClassError Class = "error"
	// ClassConnection is a transport connection lifecycle change.
	ClassConnection Class = "connection"
	// ClassFrame is a raw inbound or outbound wire frame.
	ClassFrame Class = "frame"
	// ClassProtocolError is a low-level protocol violation outside any
	// request/response exchange.
	ClassProtocolError Class = "protocolError"
)

// Direction indicates which way a raw frame travelled.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ConnectionEvent names the lifecycle transitions of a station transport
// connection.
type ConnectionEvent string

const (
	ConnectionOpened ConnectionEvent = "opened"
	ConnectionClosed ConnectionEvent = "closed"
)

// ChargeBox is the station record owned by exactly one engine. The gateway
// keeps no copy; it resolves records on demand through the owning engine.
type ChargeBox struct {
	ID              string `json:"@id"`
	Vendor          string `json:"vendor,omitempty"`
	Model           string `json:"model,omitempty"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
}

// Occurrence is one observed protocol event. Which fields are populated
// depends on Class; Request and Response hold engine-defined domain values
// that the canonicalizer projects to JSON.
type Occurrence struct {
	Kind          string
	Class         Class
	EngineID      string
	ChargeBoxID   string
	ConnectionID  string
	CorrelationID string
	ObservedAt    time.Time

	Request  any
	Response any
	Err      string
	Elapsed  time.Duration

	Connection ConnectionEvent
	Frame      []byte
	Binary     bool
	Direction  Direction
}

// Engine is a backend protocol engine attached to the gateway at startup.
// Subscribe registers the single occurrence listener; engines invoke it on
// their own goroutines, potentially concurrently, and expect it to return
// quickly. There is no Unsubscribe: engines are attached for the lifetime of
// the gateway.
type Engine interface {
	ID() string
	ChargeBoxes() []ChargeBox
	Subscribe(listener func(Occurrence))
}
