package notify

import (
	"context"
	"testing"
)

func TestChannel(t *testing.T) {
	if got := Channel(42); got != "user_notify:42" {
		t.Fatalf("unexpected channel %q", got)
	}
}

func TestPublisherWithoutRedisIsNoop(t *testing.T) {
	var nilPublisher *Publisher
	if err := nilPublisher.Publish(context.Background(), 1, Message{Type: EventResumeSaved}); err != nil {
		t.Fatalf("nil publisher: %v", err)
	}
	if err := NewPublisher(nil).Publish(context.Background(), 1, Message{Type: EventResumeSaved}); err != nil {
		t.Fatalf("publisher without client: %v", err)
	}
}

func TestDecodeMessage(t *testing.T) {
	msg, ok := decodeMessage(`{"type":"resume.saved","resume_id":"r-1","revision":3,"image_updated":true}`)
	if !ok || msg.ResumeID != "r-1" || msg.Revision != 3 || !msg.ImageUpdated {
		t.Fatalf("unexpected message %+v ok=%v", msg, ok)
	}
	if !IsKnownEvent(msg.Type) {
		t.Fatalf("%q should be a known event", msg.Type)
	}

	for _, payload := range []string{`not json`, `{}`, `{"resume_id":"r-1"}`} {
		if _, ok := decodeMessage(payload); ok {
			t.Fatalf("payload %q should be dropped", payload)
		}
	}
	if IsKnownEvent("pdf_ready") {
		t.Fatal("unexpected known event")
	}
}
