package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"

	"github.com/drblury/chargestream/internal/gateway/canonical"
	configpkg "github.com/drblury/chargestream/internal/gateway/config"
	enginepkg "github.com/drblury/chargestream/internal/gateway/engine"
	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
	"github.com/drblury/chargestream/internal/gateway/eventlog"
	loggingpkg "github.com/drblury/chargestream/internal/gateway/logging"
	registrypkg "github.com/drblury/chargestream/internal/gateway/registry"
	streampkg "github.com/drblury/chargestream/internal/gateway/stream"
	transportpkg "github.com/drblury/chargestream/internal/gateway/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to use the defaults.
type ServiceDependencies struct {
	// Overrides is the canonicalization override chain, nearest table first.
	Overrides []canonical.OverrideTable
	// Hooks receives record lifecycle callbacks.
	Hooks StreamHooks
	// Middlewares are appended after the default middleware chain.
	Middlewares []MiddlewareRegistration
	// DisableDefaultMiddlewares skips registering the default middleware chain when true.
	DisableDefaultMiddlewares bool
	TransportFactory          transportpkg.Factory
}

// Service wires the engines, the event log, the durable mirror, the record
// transport and the live subscriber fan-out into one gateway.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	registry    *registrypkg.Registry
	log         *eventlog.Log
	mirror      *eventlog.Mirror
	subscribers *streampkg.Manager
	canon       *canonical.Canonicalizer
	metrics     *StreamMetrics
	hooks       StreamHooks

	ingestCh chan enginepkg.Occurrence

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService constructs a Service for the supplied configuration. Attach
// engines on the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService is NewService without the panic on wiring errors.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating charge point gateway",
		loggingpkg.LogFields{
			"pubsub_system": conf.PubSubSystem,
			"config":        conf,
		})

	s := &Service{
		Conf:     conf,
		Logger:   log,
		registry: registrypkg.New(),
		log:      eventlog.New(conf.RingCapacity),
		canon:    canonical.New(deps.Overrides...),
		metrics:  NewStreamMetrics(nil),
		hooks:    deps.Hooks,
		ingestCh: make(chan enginepkg.Occurrence, conf.OccurrenceBuffer),
	}

	if conf.MetricsEnabled {
		if err := s.metrics.Register(); err != nil {
			return nil, err
		}
	}

	mirror, err := eventlog.OpenMirror(conf.MirrorDir, conf.MirrorPrefix, conf.MirrorMaxBytes)
	if err != nil {
		return nil, err
	}
	s.mirror = mirror

	s.subscribers = streampkg.NewManager(s.log, log, streampkg.ManagerConfig{
		Buffer: conf.SubscriberBuffer,
		OnDrop: func(id string) {
			s.metrics.SubscriberDropped()
		},
	})

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, err
	}
	if transport.Publisher == nil || transport.Subscriber == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}

	s.router.AddNoPublisherHandler(
		"record_pipeline",
		conf.RecordsTopic,
		s.subscriber,
		s.handleRecordMessage,
	)

	return s, nil
}

// Attach registers a backend engine. Attach order defines the scan order of
// charge box resolution; attaching the same engine twice is a no-op. Engines
// cannot be detached.
func (s *Service) Attach(e enginepkg.Engine) error {
	added, err := s.registry.Attach(e)
	if err != nil {
		return err
	}
	if !added {
		s.Logger.Debug("Engine already attached", loggingpkg.LogFields{"engine_id": e.ID()})
		return nil
	}

	e.Subscribe(s.ingestOccurrence)
	s.Logger.Info("Engine attached", loggingpkg.LogFields{
		"engine_id":    e.ID(),
		"charge_boxes": len(e.ChargeBoxes()),
	})
	return nil
}

// Start runs the gateway until the provided context is cancelled: the HTTP
// surface, the ingest worker and the record pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.registerAPIHandlers()
	s.startHTTPServers()

	defer func() {
		if err := s.mirror.Close(); err != nil {
			s.Logger.Error("Failed to close durable mirror", err, nil)
		}
	}()

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- routerRun(s.router, ctx)
	}()

	// The ingest worker must not publish before the transport consumer is
	// subscribed: a record published earlier would never reach the fan-out
	// handler on non-persistent transports.
	select {
	case err := <-routerErr:
		return err
	case <-s.router.Running():
	}

	go s.ingestLoop(ctx)

	return <-routerErr
}

// handleRecordMessage consumes one record from the transport and fans it out
// to the live subscribers. The durable mirror was already written by the
// ingest worker, so a record reaching this handler is persisted.
func (s *Service) handleRecordMessage(msg *message.Message) error {
	rec, err := decodeRecord(msg.Payload)
	if err != nil {
		s.Logger.Error("Discarding undecodable record message", err, loggingpkg.LogFields{
			"message_uuid": msg.UUID,
		})
		return nil
	}

	s.subscribers.Broadcast(rec)
	s.metrics.RecordDelivered()
	s.metrics.SetLiveSubscribers(s.subscribers.Count())

	s.hooks.onDeliver(RecordContext{
		Kind:          rec.Kind,
		Sequence:      rec.Sequence,
		CorrelationID: rec.CorrelationID,
		Timestamp:     rec.Timestamp,
	})
	return nil
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// Registry exposes the attached engines and their station views.
func (s *Service) Registry() *registrypkg.Registry {
	return s.registry
}

// Log exposes the in-memory event log.
func (s *Service) Log() *eventlog.Log {
	return s.log
}

// Mirror exposes the durable record mirror.
func (s *Service) Mirror() *eventlog.Mirror {
	return s.mirror
}

// Subscribers exposes the live subscriber manager.
func (s *Service) Subscribers() *streampkg.Manager {
	return s.subscribers
}

func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
