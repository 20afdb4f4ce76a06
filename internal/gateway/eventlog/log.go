// Package eventlog owns the ordered record log: a fixed-capacity in-memory
// ring that assigns sequence numbers, plus a rotating append-only mirror for
// durability. The ring is the only component allowed to mint sequences, so
// total order across all engines is established here.
package eventlog

import (
	"encoding/json"
	"sync"
	"time"

	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
)

// Record is the unit of the log: one canonicalized occurrence. Records are
// immutable once appended.
type Record struct {
	Kind          string          `json:"kind"`
	Sequence      uint64          `json:"sequence"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload"`
}

// Log is the capacity-bounded ring of recent records. Append is the single
// synchronization point of the gateway: it serializes concurrent callers,
// keeps the critical section to sequence assignment plus ring insertion, and
// leaves canonicalization, durability and fan-out to the caller.
type Log struct {
	mu       sync.Mutex
	buf      []Record
	start    int // index of the oldest retained record
	size     int
	next     uint64 // next sequence to assign, starts at 1
	capacity int
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{
		buf:      make([]Record, capacity),
		next:     1,
		capacity: capacity,
	}
}

// Append assigns the next sequence, stamps the record and inserts it into
// the ring, evicting the oldest in-memory record when full. observedAt is
// the capture time of the occurrence; a zero value falls back to now.
func (l *Log) Append(kind, correlationID string, observedAt time.Time, payload []byte) Record {
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		Kind:          kind,
		Sequence:      l.next,
		Timestamp:     observedAt,
		CorrelationID: correlationID,
		Payload:       json.RawMessage(payload),
	}
	l.next++

	if l.size == l.capacity {
		// Evict the oldest; the durable mirror keeps its copy.
		l.buf[l.start] = rec
		l.start = (l.start + 1) % l.capacity
	} else {
		l.buf[(l.start+l.size)%l.capacity] = rec
		l.size++
	}
	return rec
}

// ReadBacklog returns up to maxCount records starting at fromSequence.
// fromSequence 0 means "from the earliest retained record". When the
// requested start predates the ring's oldest retained record the caller
// gets ErrSequenceEvicted instead of a silently truncated result; deeper
// history lives only in the mirror.
func (l *Log) ReadBacklog(fromSequence uint64, maxCount int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size == 0 {
		if fromSequence > 0 && fromSequence < l.next {
			return nil, errspkg.ErrSequenceEvicted
		}
		return nil, nil
	}

	oldest := l.buf[l.start].Sequence
	if fromSequence == 0 {
		fromSequence = oldest
	}
	if fromSequence < oldest {
		return nil, errspkg.ErrSequenceEvicted
	}
	if fromSequence >= l.next {
		return nil, nil
	}

	count := int(l.next - fromSequence)
	if maxCount > 0 && count > maxCount {
		count = maxCount
	}

	out := make([]Record, 0, count)
	offset := int(fromSequence - oldest)
	for i := 0; i < count; i++ {
		out = append(out, l.buf[(l.start+offset+i)%l.capacity])
	}
	return out, nil
}

// OldestRetained returns the sequence of the oldest record still in the
// ring, or false when the ring is empty.
func (l *Log) OldestRetained() (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size == 0 {
		return 0, false
	}
	return l.buf[l.start].Sequence, true
}

// NextSequence returns the sequence the next appended record will receive.
func (l *Log) NextSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// Len returns the number of records currently retained in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the ring capacity.
func (l *Log) Capacity() int {
	return l.capacity
}
