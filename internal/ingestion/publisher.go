package ingestion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"MarginEngine/internal/event"
	"MarginEngine/internal/observability"
)

// OutboundPublisher drains the engine's output channel and publishes each
// record to the output stream. Delivery is at-least-once: a failed publish
// is retried until it lands or the publisher shuts down, and duplicates
// across restart are possible. A record is never dropped.
type OutboundPublisher struct {
	js      jetstream.JetStream
	in      <-chan event.Outbound
	log     zerolog.Logger
	metrics *observability.Metrics

	backoff    time.Duration
	maxBackoff time.Duration
}

func NewOutboundPublisher(js jetstream.JetStream, in <-chan event.Outbound, log zerolog.Logger, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:         js,
		in:         in,
		log:        log,
		metrics:    metrics,
		backoff:    200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
}

// Run publishes outbound events until ctx is cancelled or the input channel
// closes. During a stream outage the current record blocks here while the
// bounded outbound channel applies back-pressure to the engine.
func (p *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-p.in:
			if !ok {
				return nil
			}
			p.publish(ctx, evt)
		}
	}
}

func (p *OutboundPublisher) publish(ctx context.Context, evt event.Outbound) {
	// Outbound records are self-describing: they carry their kind in a
	// top-level "type" field, so no envelope wrapping is needed.
	data, err := json.Marshal(evt)
	if err != nil {
		p.log.Error().Err(err).Str("kind", evt.OutboundKind()).Msg("marshal outbound event")
		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}
		return
	}

	subject := subjectFor(evt.OutboundKind())
	wait := p.backoff

	for attempt := 1; ; attempt++ {
		_, err = p.js.Publish(ctx, subject, data)
		if err == nil {
			if p.metrics != nil {
				p.metrics.OutputsPublished.WithLabelValues(evt.OutboundKind()).Inc()
			}
			return
		}

		p.log.Warn().Err(err).Str("subject", subject).Int("attempt", attempt).Msg("outbound publish failed")
		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		if wait *= 2; wait > p.maxBackoff {
			wait = p.maxBackoff
		}
	}
}

func subjectFor(kind string) string {
	if kind == event.KindClosedOrder {
		return SubjectClosedOrders
	}
	return SubjectOrderResponses
}
