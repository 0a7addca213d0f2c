package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"MarginEngine/internal/event"
)

// stubJetStream satisfies jetstream.JetStream through embedding; only
// Publish is implemented.
type stubJetStream struct {
	jetstream.JetStream

	mu           sync.Mutex
	failuresLeft int
	attempts     int
	subjects     []string
	payloads     [][]byte
}

func (s *stubJetStream) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return nil, errors.New("nats: no responders available for request")
	}
	s.subjects = append(s.subjects, subject)
	s.payloads = append(s.payloads, payload)
	return &jetstream.PubAck{Stream: OutputStream, Sequence: uint64(len(s.payloads))}, nil
}

func newTestPublisher(js jetstream.JetStream, in <-chan event.Outbound) *OutboundPublisher {
	p := NewOutboundPublisher(js, in, zerolog.Nop(), nil)
	p.backoff = time.Millisecond
	p.maxBackoff = 4 * time.Millisecond
	return p
}

func TestPublish_RetriesUntilDelivered(t *testing.T) {
	js := &stubJetStream{failuresLeft: 8}
	p := newTestPublisher(js, nil)

	p.publish(context.Background(), &event.OrderResponse{
		Type:      event.KindOrderResponse,
		UserID:    "user-1",
		OrderID:   "order-1",
		Status:    event.StatusExecuted,
		Timestamp: 1,
	})

	if len(js.payloads) != 1 {
		t.Fatalf("published %d records, want 1", len(js.payloads))
	}
	if js.attempts != 9 {
		t.Errorf("attempts = %d, want 9", js.attempts)
	}
	if js.subjects[0] != SubjectOrderResponses {
		t.Errorf("subject = %q, want %q", js.subjects[0], SubjectOrderResponses)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(js.payloads[0], &got); err != nil {
		t.Fatalf("unmarshal published record: %v", err)
	}
	if got["type"] != event.KindOrderResponse {
		t.Errorf("published type = %v, want %q", got["type"], event.KindOrderResponse)
	}
}

func TestPublish_ClosedOrdersRouteToOwnSubject(t *testing.T) {
	js := &stubJetStream{}
	p := newTestPublisher(js, nil)

	p.publish(context.Background(), &event.ClosedOrder{
		Type:    event.KindClosedOrder,
		OrderID: "order-1",
		UserID:  "user-1",
		Reason:  "USER_CLOSE",
	})

	if len(js.subjects) != 1 || js.subjects[0] != SubjectClosedOrders {
		t.Errorf("subjects = %v, want [%s]", js.subjects, SubjectClosedOrders)
	}
}

func TestPublish_StopsRetryingOnShutdown(t *testing.T) {
	// An unreachable stream must not wedge shutdown: cancelling the
	// context releases the record mid-retry.
	js := &stubJetStream{failuresLeft: 1 << 30}
	p := newTestPublisher(js, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.publish(ctx, &event.OrderResponse{
			Type:    event.KindOrderResponse,
			UserID:  "user-1",
			OrderID: "order-1",
			Status:  event.StatusRejected,
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not stop after cancellation")
	}
	if len(js.payloads) != 0 {
		t.Errorf("published %d records against a failing stream, want 0", len(js.payloads))
	}
}

func TestRun_DrainsChannelInOrder(t *testing.T) {
	js := &stubJetStream{}
	in := make(chan event.Outbound, 2)
	p := newTestPublisher(js, in)

	in <- &event.ClosedOrder{Type: event.KindClosedOrder, OrderID: "order-1"}
	in <- &event.OrderResponse{Type: event.KindOrderResponse, OrderID: "order-1", Status: event.StatusClosed}
	close(in)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v on channel close, want nil", err)
	}
	want := []string{SubjectClosedOrders, SubjectOrderResponses}
	if len(js.subjects) != len(want) {
		t.Fatalf("published %d records, want %d", len(js.subjects), len(want))
	}
	for i, s := range want {
		if js.subjects[i] != s {
			t.Errorf("subject[%d] = %q, want %q", i, js.subjects[i], s)
		}
	}
}
