package chargestream

import (
	gatewaypkg "github.com/drblury/chargestream/internal/gateway"
	canonpkg "github.com/drblury/chargestream/internal/gateway/canonical"
	configpkg "github.com/drblury/chargestream/internal/gateway/config"
	enginepkg "github.com/drblury/chargestream/internal/gateway/engine"
	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
	eventlogpkg "github.com/drblury/chargestream/internal/gateway/eventlog"
	idspkg "github.com/drblury/chargestream/internal/gateway/ids"
	jsoncodec "github.com/drblury/chargestream/internal/gateway/jsoncodec"
	loggingpkg "github.com/drblury/chargestream/internal/gateway/logging"
	registrypkg "github.com/drblury/chargestream/internal/gateway/registry"
	streampkg "github.com/drblury/chargestream/internal/gateway/stream"
	transportpkg "github.com/drblury/chargestream/internal/gateway/transport"
)

type (
	Config              = configpkg.Config
	Service             = gatewaypkg.Service
	ServiceDependencies = gatewaypkg.ServiceDependencies
	Transport           = transportpkg.Transport
	TransportFactory    = transportpkg.Factory

	// Engine contract
	Engine          = enginepkg.Engine
	Occurrence      = enginepkg.Occurrence
	OccurrenceClass = enginepkg.Class
	ChargeBox       = enginepkg.ChargeBox
	ConnectionEvent = enginepkg.ConnectionEvent
	Direction       = enginepkg.Direction

	// Canonicalization
	Canonicalizer = canonpkg.Canonicalizer
	Override      = canonpkg.Override
	OverrideTable = canonpkg.OverrideTable
	Tagger        = canonpkg.Tagger

	// Event log
	Record = eventlogpkg.Record
	Log    = eventlogpkg.Log
	Mirror = eventlogpkg.Mirror

	// Live delivery
	Subscription = streampkg.Subscription

	Registry = registrypkg.Registry

	MiddlewareBuilder      = gatewaypkg.MiddlewareBuilder
	MiddlewareRegistration = gatewaypkg.MiddlewareRegistration
	RetryMiddlewareConfig  = gatewaypkg.RetryMiddlewareConfig

	// Record lifecycle hooks
	RecordContext = gatewaypkg.RecordContext
	StreamHooks   = gatewaypkg.StreamHooks

	StreamMetrics = gatewaypkg.StreamMetrics

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Transport capabilities
	Capabilities = transportpkg.Capabilities
)

var (
	NewService     = gatewaypkg.NewService
	TryNewService  = gatewaypkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig
	LoadConfigFile = configpkg.LoadFile

	NewCanonicalizer = canonpkg.New
	TagOf            = canonpkg.TagOf
	NewObject        = canonpkg.NewObject

	NewEventLog = eventlogpkg.New
	OpenMirror  = eventlogpkg.OpenMirror

	DefaultMiddlewares      = gatewaypkg.DefaultMiddlewares
	CorrelationIDMiddleware = gatewaypkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = gatewaypkg.LogMessagesMiddleware
	TracerMiddleware        = gatewaypkg.TracerMiddleware
	MetricsMiddleware       = gatewaypkg.MetricsMiddleware
	RetryMiddleware         = gatewaypkg.RetryMiddleware
	RecovererMiddleware     = gatewaypkg.RecovererMiddleware

	// Record lifecycle hooks
	LoggingHooks  = gatewaypkg.LoggingHooks
	AlertingHooks = gatewaypkg.AlertingHooks

	NewStreamMetrics = gatewaypkg.NewStreamMetrics

	// Transport capabilities
	GetCapabilities = transportpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ParseChargeBoxID = registrypkg.ParseChargeBoxID

	ErrEngineRequired     = errspkg.ErrEngineRequired
	ErrEngineIDRequired   = errspkg.ErrEngineIDRequired
	ErrInvalidChargeBoxID = errspkg.ErrInvalidChargeBoxID
	ErrUnknownChargeBox   = errspkg.ErrUnknownChargeBox
	ErrSequenceEvicted    = errspkg.ErrSequenceEvicted
	ErrMirrorClosed       = errspkg.ErrMirrorClosed
	ErrIngestQueueFull    = errspkg.ErrIngestQueueFull

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger

	CreateULID = idspkg.CreateULID
)

// Occurrence class constants re-exported for engine implementations.
const (
	ClassRequest       = enginepkg.ClassRequest
	ClassResponse      = enginepkg.ClassResponse
	ClassError         = enginepkg.ClassError
	ClassConnection    = enginepkg.ClassConnection
	ClassFrame         = enginepkg.ClassFrame
	ClassProtocolError = enginepkg.ClassProtocolError

	ConnectionOpened = enginepkg.ConnectionOpened
	ConnectionClosed = enginepkg.ConnectionClosed

	DirectionInbound  = enginepkg.DirectionInbound
	DirectionOutbound = enginepkg.DirectionOutbound
)

// Metadata keys - use these constants for standard record metadata fields.
const (
	MetadataKeyKind          = gatewaypkg.MetadataKeyKind
	MetadataKeySequence      = gatewaypkg.MetadataKeySequence
	MetadataKeyCorrelationID = gatewaypkg.MetadataKeyCorrelationID
)
