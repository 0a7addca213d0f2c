package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"MarginEngine/internal/observability"
)

// Message is one input log record with its stream offset. The offset is the
// JetStream stream sequence, which the engine persists in snapshots and uses
// to resume after a crash.
type Message struct {
	Offset uint64
	Data   []byte
}

// Reader pulls input records in stream order. It uses an ordered (ephemeral)
// consumer: the engine owns its replay position via the snapshot offset, so
// no durable consumer state is kept on the server.
type Reader struct {
	consumer jetstream.Consumer
	log      zerolog.Logger
	metrics  *observability.Metrics

	fetchBatch int
	fetchWait  time.Duration
}

// NewReader creates an ordered consumer on the input stream positioned just
// after afterOffset. afterOffset == 0 means consume from the start of
// retained history.
func NewReader(ctx context.Context, js jetstream.JetStream, afterOffset uint64, log zerolog.Logger, metrics *observability.Metrics) (*Reader, error) {
	cfg := jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterOffset > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterOffset + 1
	}

	consumer, err := js.OrderedConsumer(ctx, InputStream, cfg)
	if err != nil {
		return nil, fmt.Errorf("ordered consumer on %s: %w", InputStream, err)
	}

	return &Reader{
		consumer:   consumer,
		log:        log,
		metrics:    metrics,
		fetchBatch: 256,
		fetchWait:  time.Second,
	}, nil
}

// Run fetches records and delivers them to out in stream order until ctx is
// cancelled. Fetch errors are logged and retried; ordering is preserved
// because the ordered consumer recreates itself from the last delivered
// sequence on failure.
func (r *Reader) Run(ctx context.Context, out chan<- Message) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch, err := r.consumer.Fetch(r.fetchBatch, jetstream.FetchMaxWait(r.fetchWait))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.log.Warn().Err(err).Msg("input fetch failed")
			if r.metrics != nil {
				r.metrics.ReadErrors.Inc()
			}
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for msg := range batch.Messages() {
			meta, err := msg.Metadata()
			if err != nil {
				r.log.Error().Err(err).Msg("message missing metadata, skipping")
				if r.metrics != nil {
					r.metrics.ReadErrors.Inc()
				}
				continue
			}

			select {
			case out <- Message{Offset: meta.Sequence.Stream, Data: msg.Data()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			r.log.Warn().Err(err).Msg("input batch ended with error")
			if r.metrics != nil {
				r.metrics.ReadErrors.Inc()
			}
		}
	}
}
