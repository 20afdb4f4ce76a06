package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/chargestream/internal/gateway/config"
	enginepkg "github.com/drblury/chargestream/internal/gateway/engine"
	loggingpkg "github.com/drblury/chargestream/internal/gateway/logging"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

type testPublisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message
	err      error
}

func newTestPublisher() *testPublisher {
	return &testPublisher{messages: make(map[string][]*message.Message)}
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages[topic] = append(p.messages[topic], messages...)
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Topic(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.messages[topic]))
	copy(clone, p.messages[topic])
	return clone
}

type testEngine struct {
	mu       sync.Mutex
	id       string
	boxes    []enginepkg.ChargeBox
	listener func(enginepkg.Occurrence)
	subs     int
}

func newTestEngine(id string, boxIDs ...string) *testEngine {
	boxes := make([]enginepkg.ChargeBox, 0, len(boxIDs))
	for _, b := range boxIDs {
		boxes = append(boxes, enginepkg.ChargeBox{ID: b, Vendor: "TestCo", Model: "T1"})
	}
	return &testEngine{id: id, boxes: boxes}
}

func (e *testEngine) ID() string { return e.id }

func (e *testEngine) ChargeBoxes() []enginepkg.ChargeBox { return e.boxes }

func (e *testEngine) Subscribe(listener func(enginepkg.Occurrence)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = listener
	e.subs++
}

func (e *testEngine) emit(occ enginepkg.Occurrence) {
	e.mu.Lock()
	listener := e.listener
	e.mu.Unlock()
	if listener != nil {
		listener(occ)
	}
}

func (e *testEngine) subscriptions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subs
}

func testConfig(t *testing.T) *configpkg.Config {
	t.Helper()
	return &configpkg.Config{
		PubSubSystem: "channel",
		MirrorDir:    t.TempDir(),
	}
}

func newChannelService(t *testing.T) *Service {
	t.Helper()
	svc, err := TryNewService(testConfig(t), newTestLogger(), context.Background(), ServiceDependencies{})
	require.NoError(t, err)
	return svc
}

func newTestMessage(payload []byte) *message.Message {
	return message.NewMessage("test-message", payload)
}

func testNoopHandler() http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
}

// startPipeline runs the router and ingest worker until the test ends.
func startPipeline(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = svc.mirror.Close()
	})

	go svc.ingestLoop(ctx)
	go func() {
		_ = routerRun(svc.router, ctx)
	}()

	select {
	case <-svc.router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}
