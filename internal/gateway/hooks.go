package gateway

import (
	"time"
)

// RecordContext provides information about a logged record to hooks.
type RecordContext struct {
	// Kind is the occurrence kind the record was logged under.
	Kind string
	// Sequence is the record's position in the log. Zero when the failure
	// happened before a sequence was assigned.
	Sequence uint64
	// CorrelationID threads a request occurrence through to its response.
	CorrelationID string
	// Timestamp is the capture time of the occurrence.
	Timestamp time.Time
	// Elapsed is the request/response processing duration (response and
	// error records only).
	Elapsed time.Duration
}

// StreamHooks defines callbacks for record lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type StreamHooks struct {
	// OnAppend is called after a record received its sequence and entered
	// the ring.
	OnAppend func(ctx RecordContext)

	// OnDeliver is called after a record cleared the durable mirror and was
	// fanned out to the live subscribers.
	OnDeliver func(ctx RecordContext)

	// OnError is called when canonicalization, the durable write or the
	// record publish fails. The pipeline keeps running either way.
	OnError func(ctx RecordContext, err error)
}

// Merge combines two StreamHooks, creating a new StreamHooks that calls
// both. The hooks from 'other' are called after the hooks from 'h'.
func (h StreamHooks) Merge(other StreamHooks) StreamHooks {
	return StreamHooks{
		OnAppend:  chainRecordHooks(h.OnAppend, other.OnAppend),
		OnDeliver: chainRecordHooks(h.OnDeliver, other.OnDeliver),
		OnError:   chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainRecordHooks(a, b func(RecordContext)) func(RecordContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RecordContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(RecordContext, error)) func(RecordContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RecordContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h StreamHooks) onAppend(ctx RecordContext) {
	if h.OnAppend != nil {
		h.OnAppend(ctx)
	}
}

func (h StreamHooks) onDeliver(ctx RecordContext) {
	if h.OnDeliver != nil {
		h.OnDeliver(ctx)
	}
}

func (h StreamHooks) onError(ctx RecordContext, err error) {
	if h.OnError != nil {
		h.OnError(ctx, err)
	}
}

// LoggingHooks returns pre-built hooks that log record lifecycle events.
func LoggingHooks(logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}) StreamHooks {
	return StreamHooks{
		OnAppend: func(ctx RecordContext) {
			logger.Info("Record appended", map[string]interface{}{
				"kind":           ctx.Kind,
				"sequence":       ctx.Sequence,
				"correlation_id": ctx.CorrelationID,
			})
		},
		OnDeliver: func(ctx RecordContext) {
			logger.Info("Record delivered", map[string]interface{}{
				"kind":     ctx.Kind,
				"sequence": ctx.Sequence,
			})
		},
		OnError: func(ctx RecordContext, err error) {
			logger.Error("Record pipeline error", err, map[string]interface{}{
				"kind":           ctx.Kind,
				"sequence":       ctx.Sequence,
				"correlation_id": ctx.CorrelationID,
			})
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on pipeline
// errors.
func AlertingHooks(alertFunc func(ctx RecordContext, err error)) StreamHooks {
	return StreamHooks{
		OnError: alertFunc,
	}
}
