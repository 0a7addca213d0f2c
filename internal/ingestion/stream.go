package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Stream and subject layout. The engine consumes one input stream and
// publishes to one output stream; downstream relays filter by subject.
const (
	InputStream  = "ENGINE_INPUT"
	InputSubject = "engine.input"

	OutputStream          = "ENGINE_OUTPUT"
	OutputSubjectPrefix   = "engine.output"
	SubjectOrderResponses = "engine.output.responses"
	SubjectClosedOrders   = "engine.output.closed"
)

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

// EnsureStreams creates the input and output streams if they don't exist.
// Streams use FileStorage with a 72h retention limit; the engine's own
// snapshot offset, not stream retention, is what bounds replay.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      InputStream,
			Subjects:  []string{InputSubject},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      OutputStream,
			Subjects:  []string{OutputSubjectPrefix + ".>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("stream ensured")
	}

	return nil
}

// StreamHead returns the last stream sequence of the input stream. Used to
// seed the snapshot offset on a fresh deployment so replay starts at the
// current head instead of the beginning of retained history.
func StreamHead(ctx context.Context, js jetstream.JetStream) (uint64, error) {
	stream, err := js.Stream(ctx, InputStream)
	if err != nil {
		return 0, fmt.Errorf("lookup stream %s: %w", InputStream, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("stream info %s: %w", InputStream, err)
	}

	return info.State.LastSeq, nil
}
