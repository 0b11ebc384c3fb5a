package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	kafkapublisher "github.com/example/wa-broadcast/internal/kafka/publisher"
	"github.com/example/wa-broadcast/internal/models"
)

type fakeSyncProducer struct {
	err     error
	topic   string
	key     []byte
	headers map[string][]byte
	payload []byte
}

func (f *fakeSyncProducer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	f.topic = topic
	f.key = append([]byte(nil), key...)
	f.headers = headers
	f.payload = append([]byte(nil), payload...)
	return f.err
}

func TestStatusPublisherPublishesEvent(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewStatusPublisher(prod, "wa.broadcast.status", zerolog.Nop())
	if pub == nil {
		t.Fatalf("expected publisher instance")
	}

	event := models.StatusEvent{
		RunID:       "run-42",
		EventType:   models.StatusEventFailed,
		Recipient:   "278*****567",
		Error:       "whatsapp document failed: http 400",
		FailureType: models.FailureTypePermanent,
		Timestamp:   time.Unix(123, 0).UTC(),
	}

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if prod.topic != "wa.broadcast.status" {
		t.Fatalf("expected topic wa.broadcast.status, got %s", prod.topic)
	}
	if string(prod.key) != "run-42" {
		t.Fatalf("expected run id as key, got %s", string(prod.key))
	}
	if ct := prod.headers["content-type"]; string(ct) != "application/json" {
		t.Fatalf("expected content-type header, got %s", string(ct))
	}
	if et := prod.headers["event-type"]; string(et) != models.StatusEventFailed {
		t.Fatalf("expected event-type header, got %s", string(et))
	}

	var payload models.StatusEvent
	if err := json.Unmarshal(prod.payload, &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if payload.EventType != models.StatusEventFailed || payload.Recipient != "278*****567" || payload.FailureType != "permanent" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestStatusPublisherPropagatesProducerError(t *testing.T) {
	expectedErr := errors.New("broker down")
	prod := &fakeSyncProducer{err: expectedErr}

	pub := kafkapublisher.NewStatusPublisher(prod, "wa.broadcast.status", zerolog.Nop())
	err := pub.Publish(context.Background(), models.StatusEvent{RunID: "id"})
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestStatusPublisherNil(t *testing.T) {
	if kafkapublisher.NewStatusPublisher(nil, "topic", zerolog.Nop()) != nil {
		t.Fatalf("expected nil publisher without producer")
	}
	var pub *kafkapublisher.StatusPublisher
	if err := pub.Publish(context.Background(), models.StatusEvent{}); !errors.Is(err, kafkapublisher.ErrProducerNotInitialised()) {
		t.Fatalf("expected not-initialised error, got %v", err)
	}
}

func TestStatusPublisherSkipsCanceledContext(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewStatusPublisher(prod, "wa.broadcast.status", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Publish(ctx, models.StatusEvent{RunID: "id", EventType: models.StatusEventSummary})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if prod.topic != "" || prod.payload != nil {
		t.Fatalf("expected nothing sent to the producer")
	}
}
