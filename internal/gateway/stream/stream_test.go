package stream

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
	"github.com/drblury/chargestream/internal/gateway/eventlog"
	"github.com/drblury/chargestream/internal/gateway/logging"
)

func newTestLogger() logging.ServiceLogger {
	return logging.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestManager(t *testing.T, capacity, buffer int) (*Manager, *eventlog.Log) {
	t.Helper()
	log := eventlog.New(capacity)
	mgr := NewManager(log, newTestLogger(), ManagerConfig{Buffer: buffer})
	return mgr, log
}

func appendAndBroadcast(log *eventlog.Log, mgr *Manager, kind string) eventlog.Record {
	rec := log.Append(kind, "", time.Time{}, []byte(`{}`))
	mgr.Broadcast(rec)
	return rec
}

func drain(sub *Subscription, n int) []eventlog.Record {
	out := make([]eventlog.Record, 0, n)
	for i := 0; i < n; i++ {
		select {
		case rec := <-sub.C():
			out = append(out, rec)
		case <-time.After(time.Second):
			return out
		}
	}
	return out
}

func TestSubscribeFreshReceivesBacklogThenLive(t *testing.T) {
	mgr, log := newTestManager(t, 100, 8)

	for i := 0; i < 3; i++ {
		log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))
	}

	sub, err := mgr.Subscribe(0)
	require.NoError(t, err)
	defer sub.Close()

	appendAndBroadcast(log, mgr, "OnHeartbeat")

	recs := drain(sub, 4)
	require.Len(t, recs, 4)
	for i, rec := range recs {
		assert.Equal(t, uint64(i+1), rec.Sequence)
	}
}

func TestSubscribeResumeAfterSequence(t *testing.T) {
	mgr, log := newTestManager(t, 100, 8)

	for i := 0; i < 5; i++ {
		log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))
	}

	sub, err := mgr.Subscribe(2)
	require.NoError(t, err)
	defer sub.Close()

	recs := drain(sub, 3)
	require.Len(t, recs, 3)
	assert.Equal(t, uint64(3), recs[0].Sequence)
	assert.Equal(t, uint64(5), recs[2].Sequence)
}

func TestSubscribeNoDuplicateAcrossReplayAndLive(t *testing.T) {
	mgr, log := newTestManager(t, 100, 8)

	for i := 0; i < 3; i++ {
		log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))
	}

	sub, err := mgr.Subscribe(0)
	require.NoError(t, err)
	defer sub.Close()

	// Re-broadcast a record the subscriber already got via replay.
	recs, err := log.ReadBacklog(0, 0)
	require.NoError(t, err)
	mgr.Broadcast(recs[1])
	appendAndBroadcast(log, mgr, "OnHeartbeat")

	got := drain(sub, 4)
	require.Len(t, got, 4)
	seen := map[uint64]bool{}
	for _, rec := range got {
		require.False(t, seen[rec.Sequence], "sequence %d delivered twice", rec.Sequence)
		seen[rec.Sequence] = true
	}
}

func TestSubscribeEvictedHistoryFails(t *testing.T) {
	mgr, log := newTestManager(t, 3, 8)

	for i := 0; i < 6; i++ {
		log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))
	}

	// Sequences 1..3 already left the ring.
	_, err := mgr.Subscribe(1)
	assert.ErrorIs(t, err, errspkg.ErrSequenceEvicted)

	// Resuming from a retained point still works.
	sub, err := mgr.Subscribe(3)
	require.NoError(t, err)
	sub.Close()
}

func TestBroadcastDropsSlowSubscriberOnly(t *testing.T) {
	mgr, log := newTestManager(t, 1000, 2)

	var droppedID string
	mgr.onDrop = func(id string) { droppedID = id }

	slow, err := mgr.Subscribe(0)
	require.NoError(t, err)
	fast, err := mgr.Subscribe(0)
	require.NoError(t, err)
	defer fast.Close()

	// Never read from slow; its channel fills and it gets dropped.
	var fastGot int
	for i := 0; i < 10; i++ {
		appendAndBroadcast(log, mgr, "OnMeterValues")
		fastGot += len(drain(fast, 1))
	}

	assert.Equal(t, 10, fastGot)
	assert.Equal(t, 1, mgr.Count())
	assert.Equal(t, slow.ID(), droppedID)

	// The dropped subscriber's channel is closed.
	for range slow.C() {
	}
	slow.Close() // still safe
}

func TestBroadcastBackfillsPipelineGaps(t *testing.T) {
	mgr, log := newTestManager(t, 100, 8)

	sub, err := mgr.Subscribe(0)
	require.NoError(t, err)
	defer sub.Close()

	// Append three records but only broadcast the last: the manager must
	// repair the gap from the ring.
	log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))
	log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))
	rec := log.Append("OnHeartbeat", "", time.Time{}, []byte(`{}`))
	mgr.Broadcast(rec)

	got := drain(sub, 3)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, uint64(i+1), r.Sequence)
	}
}

func TestCloseIsIdempotentAndRemoves(t *testing.T) {
	mgr, _ := newTestManager(t, 10, 4)

	sub, err := mgr.Subscribe(0)
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Count())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, mgr.Count())
}

func TestManySubscribersSeeIdenticalStream(t *testing.T) {
	mgr, log := newTestManager(t, 1000, 64)

	subs := make([]*Subscription, 0, 5)
	for i := 0; i < 5; i++ {
		sub, err := mgr.Subscribe(0)
		require.NoError(t, err)
		defer sub.Close()
		subs = append(subs, sub)
	}

	for i := 0; i < 20; i++ {
		appendAndBroadcast(log, mgr, fmt.Sprintf("kind-%d", i))
	}

	for _, sub := range subs {
		recs := drain(sub, 20)
		require.Len(t, recs, 20)
		for i, rec := range recs {
			require.Equal(t, uint64(i+1), rec.Sequence)
		}
	}
}
