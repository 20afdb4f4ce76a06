// Package chargestream turns the raw protocol traffic of charge point
// backends into one ordered, replayable event stream. Backend engines are
// attached at startup; every request, response, error, connection change and
// raw frame they observe is canonicalized to deterministic JSON, appended to
// a bounded in-memory log with a gapless sequence, mirrored to rotating
// NDJSON segments on disk, and fanned out live to HTTP subscribers over
// Server-Sent Events.
//
// A minimal setup involves filling Config, creating a Service, attaching one
// or more engines, and calling Start; see examples/simple for a runnable
// setup.
//
// # Record pipeline
//
// Engine callbacks never block: occurrences are handed to a single ingest
// worker over a bounded queue (full queue drops and counts). The worker
// canonicalizes the domain payload, assigns the next sequence, writes the
// record to the durable mirror and publishes it over a Watermill transport,
// so a delivered record has always been persisted first and the mirror stays
// in sequence order.
//
// # Transports
//
// The record transport is selected via Config.PubSubSystem:
//   - channel: In-memory Go channels (the default)
//   - kafka: High-throughput streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats: High-performance messaging
//   - http: Request/response messaging
//
// Anything other than channel doubles as an export stream: every canonical
// record reaches the external broker in addition to the local subscribers.
//
// # HTTP surface
//
// The gateway serves GET /chargeBoxIds, /chargeBoxes and /chargeBoxes/{id}
// for the station inventory, /events for the live stream (resumable via
// Last-Event-ID) and /status for operator introspection. Prometheus metrics
// are exposed separately when enabled.
//
// When you need more control, ServiceDependencies exposes well-scoped hooks:
// bring your own canonicalization overrides, record lifecycle hooks,
// middleware registrations, or an entire TransportFactory to plug in custom
// brokers.
package chargestream
