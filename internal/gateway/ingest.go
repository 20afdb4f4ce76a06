package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/chargestream/internal/gateway/canonical"
	enginepkg "github.com/drblury/chargestream/internal/gateway/engine"
	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
	"github.com/drblury/chargestream/internal/gateway/eventlog"
	idspkg "github.com/drblury/chargestream/internal/gateway/ids"
	"github.com/drblury/chargestream/internal/gateway/jsoncodec"
	loggingpkg "github.com/drblury/chargestream/internal/gateway/logging"
)

// Metadata keys attached to record messages on the transport.
const (
	MetadataKeyKind          = "record_kind"
	MetadataKeySequence      = "record_sequence"
	MetadataKeyCorrelationID = "correlation_id"
)

// ingestOccurrence is the listener handed to every attached engine. It runs
// on the engine's goroutine and must never block: it stamps the occurrence
// and hands it to the ingest worker over a buffered channel, dropping when
// the queue is full.
func (s *Service) ingestOccurrence(occ enginepkg.Occurrence) {
	if occ.Kind == "" && occ.Class == "" {
		s.Logger.Error("Occurrence rejected", errspkg.ErrOccurrenceKindNeeded, loggingpkg.LogFields{
			"engine_id": occ.EngineID,
		})
		return
	}
	if occ.ObservedAt.IsZero() {
		occ.ObservedAt = time.Now().UTC()
	}
	if occ.CorrelationID == "" {
		occ.CorrelationID = idspkg.CreateULID()
	}

	select {
	case s.ingestCh <- occ:
	default:
		s.metrics.OccurrenceDropped()
		s.Logger.Error("Occurrence dropped", errspkg.ErrIngestQueueFull, loggingpkg.LogFields{
			"kind":      occ.Kind,
			"engine_id": occ.EngineID,
		})
	}
}

// ingestLoop is the single writer of the event log. One worker keeps the
// arrival order of occurrences intact through sequence assignment.
func (s *Service) ingestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case occ := <-s.ingestCh:
			s.processOccurrence(occ)
		}
	}
}

func (s *Service) processOccurrence(occ enginepkg.Occurrence) {
	kind := occ.Kind
	if kind == "" {
		kind = string(occ.Class)
	}

	payload, err := s.buildPayload(occ)
	if err != nil {
		s.metrics.CanonicalizationFailure()
		s.Logger.Error("Canonicalization failed", err, loggingpkg.LogFields{
			"kind":          kind,
			"charge_box_id": occ.ChargeBoxID,
		})
		s.hooks.onError(RecordContext{
			Kind:          kind,
			CorrelationID: occ.CorrelationID,
			Timestamp:     occ.ObservedAt,
		}, err)
		payload = fallbackPayload(occ, err)
	}

	rec := s.log.Append(kind, occ.CorrelationID, occ.ObservedAt, payload)

	s.metrics.RecordAppended(kind)
	s.metrics.SetRingRecords(s.log.Len())
	if occ.Class == enginepkg.ClassResponse || occ.Class == enginepkg.ClassError {
		s.metrics.ObserveExchange(kind, occ.Elapsed)
	}
	s.hooks.onAppend(RecordContext{
		Kind:          rec.Kind,
		Sequence:      rec.Sequence,
		CorrelationID: rec.CorrelationID,
		Timestamp:     rec.Timestamp,
		Elapsed:       occ.Elapsed,
	})

	s.mirrorRecord(rec)
	s.publishRecord(rec)
}

// mirrorRecord writes the record to the durable mirror. Running on the single
// ingest worker keeps the mirror in sequence order and guarantees the durable
// copy exists before the record is handed to the transport for delivery. A
// failed write is reported but never stops the stream.
func (s *Service) mirrorRecord(rec eventlog.Record) {
	if err := s.mirror.Append(rec); err != nil {
		s.metrics.MirrorWriteFailure()
		s.Logger.Error("Durable mirror write failed", err, loggingpkg.LogFields{
			"sequence": rec.Sequence,
		})
		s.hooks.onError(RecordContext{
			Kind:          rec.Kind,
			Sequence:      rec.Sequence,
			CorrelationID: rec.CorrelationID,
			Timestamp:     rec.Timestamp,
		}, err)
	}
}

func (s *Service) publishRecord(rec eventlog.Record) {
	raw, err := jsoncodec.Marshal(rec)
	if err != nil {
		s.metrics.PublishFailure()
		s.Logger.Error("Failed to encode record", err, loggingpkg.LogFields{"sequence": rec.Sequence})
		return
	}

	msg := message.NewMessage(idspkg.CreateULID(), raw)
	msg.Metadata[MetadataKeyKind] = rec.Kind
	msg.Metadata[MetadataKeySequence] = strconv.FormatUint(rec.Sequence, 10)
	msg.Metadata[MetadataKeyCorrelationID] = rec.CorrelationID

	if err := s.publisher.Publish(s.Conf.RecordsTopic, msg); err != nil {
		s.metrics.PublishFailure()
		s.Logger.Error("Failed to publish record", err, loggingpkg.LogFields{
			"topic":    s.Conf.RecordsTopic,
			"sequence": rec.Sequence,
		})
		s.hooks.onError(RecordContext{
			Kind:          rec.Kind,
			Sequence:      rec.Sequence,
			CorrelationID: rec.CorrelationID,
			Timestamp:     rec.Timestamp,
		}, err)
	}
}

// decodeRecord parses a record message payload back into its log form.
func decodeRecord(payload []byte) (eventlog.Record, error) {
	var rec eventlog.Record
	if err := jsoncodec.Unmarshal(payload, &rec); err != nil {
		return eventlog.Record{}, err
	}
	return rec, nil
}

// buildPayload projects an occurrence into its canonical JSON payload. Field
// order is fixed per class so equal occurrences yield byte-identical output.
func (s *Service) buildPayload(occ enginepkg.Occurrence) ([]byte, error) {
	obj := canonical.NewObject()

	switch occ.Class {
	case enginepkg.ClassRequest:
		obj.Put("chargeBoxId", occ.ChargeBoxID)
		obj.Put("connectionId", occ.ConnectionID)
		if err := s.putCanonical(obj, "request", occ.Request); err != nil {
			return nil, err
		}

	case enginepkg.ClassResponse:
		obj.Put("chargeBoxId", occ.ChargeBoxID)
		obj.Put("connectionId", occ.ConnectionID)
		if err := s.putCanonical(obj, "request", occ.Request); err != nil {
			return nil, err
		}
		if err := s.putCanonical(obj, "response", occ.Response); err != nil {
			return nil, err
		}
		obj.Put("elapsedMillis", occ.Elapsed.Milliseconds())

	case enginepkg.ClassError:
		obj.Put("chargeBoxId", occ.ChargeBoxID)
		obj.Put("connectionId", occ.ConnectionID)
		if occ.Request != nil {
			if err := s.putCanonical(obj, "request", occ.Request); err != nil {
				return nil, err
			}
		}
		obj.Put("error", occ.Err)
		obj.Put("elapsedMillis", occ.Elapsed.Milliseconds())

	case enginepkg.ClassConnection:
		obj.Put("chargeBoxId", occ.ChargeBoxID)
		obj.Put("connectionId", occ.ConnectionID)
		obj.Put("event", string(occ.Connection))

	case enginepkg.ClassFrame:
		obj.Put("connectionId", occ.ConnectionID)
		obj.Put("direction", string(occ.Direction))
		obj.Put("binary", occ.Binary)
		if occ.Binary {
			obj.Put("frame", occ.Frame)
		} else {
			obj.Put("frame", string(occ.Frame))
		}

	case enginepkg.ClassProtocolError:
		obj.Put("connectionId", occ.ConnectionID)
		obj.Put("error", occ.Err)

	default:
		obj.Put("chargeBoxId", occ.ChargeBoxID)
		obj.Put("connectionId", occ.ConnectionID)
		if occ.Request != nil {
			if err := s.putCanonical(obj, "request", occ.Request); err != nil {
				return nil, err
			}
		}
	}

	return obj.Bytes()
}

func (s *Service) putCanonical(obj *canonical.Object, name string, v any) error {
	raw, err := s.canon.Canonicalize(v)
	if err != nil {
		return err
	}
	obj.PutRaw(name, raw)
	return nil
}

// fallbackPayload builds the failure record that replaces a payload whose
// canonical projection failed. The original kind is kept so the stream stays
// gapless; the domain values are carried as best-effort formatted text.
func fallbackPayload(occ enginepkg.Occurrence, cause error) []byte {
	obj := canonical.NewObject()
	obj.Put("canonicalizationError", cause.Error())
	obj.Put("chargeBoxId", occ.ChargeBoxID)
	obj.Put("connectionId", occ.ConnectionID)
	if occ.Request != nil {
		obj.Put("request", fmt.Sprintf("%+v", occ.Request))
	}
	if occ.Response != nil {
		obj.Put("response", fmt.Sprintf("%+v", occ.Response))
	}

	raw, err := obj.Bytes()
	if err != nil {
		// Only string and formatted values went in; this cannot fail.
		return []byte(`{"canonicalizationError":"unrepresentable occurrence"}`)
	}
	return raw
}
