package errors

import sterrors "errors"

var (
	ErrEngineRequired       = sterrors.New("chargestream: engine is required")
	ErrEngineIDRequired     = sterrors.New("chargestream: engine identity is required")
	ErrInvalidChargeBoxID   = sterrors.New("chargestream: invalid charge box identification")
	ErrUnknownChargeBox     = sterrors.New("chargestream: unknown charge box identification")
	ErrSequenceEvicted      = sterrors.New("chargestream: requested sequence no longer retained in memory")
	ErrSubscriberClosed     = sterrors.New("chargestream: subscriber is closed")
	ErrMirrorClosed         = sterrors.New("chargestream: durable mirror is closed")
	ErrPublisherRequired    = sterrors.New("chargestream: publisher is required")
	ErrOccurrenceKindNeeded = sterrors.New("chargestream: occurrence kind is required")
	ErrIngestQueueFull      = sterrors.New("chargestream: ingest queue is full")
)
