// Package stream tracks live delivery channels, replays backlog on
// (re)connection and pushes newly appended records as they arrive. Fan-out
// is non-blocking from the log's perspective: a slow subscriber is
// disconnected rather than allowed to stall the pipeline or its peers.
package stream

import (
	"sync"

	"github.com/drblury/chargestream/internal/gateway/eventlog"
	"github.com/drblury/chargestream/internal/gateway/ids"
	"github.com/drblury/chargestream/internal/gateway/logging"
)

// Manager owns all live subscribers. Broadcast and Subscribe synchronize on
// one mutex so a subscriber either sees a record during backlog replay or
// via fan-out, never both and never neither.
type Manager struct {
	mu     sync.Mutex
	log    *eventlog.Log
	subs   map[string]*Subscription
	buffer int
	logger logging.ServiceLogger

	onDrop func(subscriberID string)
}

// ManagerConfig carries the knobs NewManager needs.
type ManagerConfig struct {
	// Buffer is the per-subscriber channel capacity beyond the replayed
	// backlog. A subscriber this far behind live traffic is disconnected.
	Buffer int
	// OnDrop is invoked (outside the manager lock) when a subscriber is
	// disconnected for falling behind.
	OnDrop func(subscriberID string)
}

func NewManager(log *eventlog.Log, logger logging.ServiceLogger, cfg ManagerConfig) *Manager {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Manager{
		log:    log,
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		logger: logger,
		onDrop: cfg.OnDrop,
	}
}

// Subscription is one live delivery channel. Records arrive on C in
// sequence order, backlog first, then live appends. Close is idempotent.
type Subscription struct {
	id   string
	ch   chan eventlog.Record
	next uint64 // sequence the subscriber expects next
	mgr  *Manager
	once sync.Once
}

// ID returns the opaque subscriber identity.
func (s *Subscription) ID() string { return s.id }

// C is the delivery channel; it is closed when the subscription ends.
func (s *Subscription) C() <-chan eventlog.Record { return s.ch }

// Close unsubscribes. Safe to call multiple times and after the manager
// already dropped the subscriber.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mgr.remove(s.id)
	})
}

// Subscribe registers a new live subscriber. afterSequence is the client's
// last delivered sequence; 0 means a fresh connection that starts at the
// earliest retained record. Backlog still in the ring is queued before the
// subscription is exposed to fan-out; a request for history that already
// left the ring fails with ErrSequenceEvicted rather than a gapped stream.
func (m *Manager) Subscribe(afterSequence uint64) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := uint64(0)
	if afterSequence > 0 {
		from = afterSequence + 1
	}

	backlog, err := m.log.ReadBacklog(from, 0)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:  ids.CreateULID(),
		ch:  make(chan eventlog.Record, len(backlog)+m.buffer),
		mgr: m,
	}

	switch {
	case len(backlog) > 0:
		for _, rec := range backlog {
			sub.ch <- rec
		}
		sub.next = backlog[len(backlog)-1].Sequence + 1
	case afterSequence > 0:
		sub.next = afterSequence + 1
	default:
		sub.next = m.log.NextSequence()
	}

	m.subs[sub.id] = sub
	return sub, nil
}

// Broadcast fans one appended record out to every live subscriber without
// blocking. Subscribers whose channel is full are dropped; everyone else is
// unaffected. Records a subscriber has already seen via backlog replay are
// skipped.
func (m *Manager) Broadcast(rec eventlog.Record) {
	var dropped []*Subscription

	m.mu.Lock()
	for _, sub := range m.subs {
		if rec.Sequence < sub.next {
			continue
		}
		if rec.Sequence > sub.next {
			// The pipeline skipped sequences (e.g. a failed publish). Fill
			// the hole from the ring instead of delivering a gapped stream.
			if !m.backfillLocked(sub, rec.Sequence) {
				dropped = append(dropped, sub)
				continue
			}
		}
		select {
		case sub.ch <- rec:
			sub.next = rec.Sequence + 1
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		delete(m.subs, sub.id)
		close(sub.ch)
	}
	m.mu.Unlock()

	for _, sub := range dropped {
		if m.logger != nil {
			m.logger.Info("Dropped slow or gapped subscriber", logging.LogFields{
				"subscriber_id": sub.id,
				"sequence":      rec.Sequence,
			})
		}
		if m.onDrop != nil {
			m.onDrop(sub.id)
		}
	}
}

func (m *Manager) backfillLocked(sub *Subscription, upTo uint64) bool {
	missing, err := m.log.ReadBacklog(sub.next, int(upTo-sub.next))
	if err != nil {
		return false
	}
	for _, rec := range missing {
		select {
		case sub.ch <- rec:
			sub.next = rec.Sequence + 1
		default:
			return false
		}
	}
	return sub.next == upTo
}

// Count returns the number of live subscribers.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return
	}
	delete(m.subs, id)
	close(sub.ch)
}
