package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicStatusChanged, StatusChanged{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestTopicsUnderWildcard(t *testing.T) {
	for _, topic := range Topics {
		if len(topic) <= len("tender.") || topic[:len("tender.")] != "tender." {
			t.Errorf("topic %q is not matched by %q", topic, TopicAll)
		}
	}
}

func TestNewBatchCompleted(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	b := &model.BatchResult{
		RunID: "run-1", Project: "bridge",
		Processed: 3, Skipped: 1, NodesCreated: 12, EdgesCreated: 4, PlaceholdersMerged: 2,
		Errors:    []model.DocumentError{{Document: "a.pdf", Error: "boom"}},
		StartedAt: start, FinishedAt: start.Add(90 * time.Second),
	}
	got := NewBatchCompleted(b)
	want := BatchCompleted{
		Project: "bridge", RunID: "run-1", Processed: 3, Skipped: 1, Failed: 1,
		NodesCreated: 12, EdgesCreated: 4, PlaceholdersMerged: 2, Duration: 90 * time.Second,
	}
	if got != want {
		t.Errorf("NewBatchCompleted = %+v, want %+v", got, want)
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, nil)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicStatusChanged, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := StatusChanged{
		Project: "bridge", NodeID: "n-1", Title: "Angebot unterschreiben",
		OldStatus: model.StatusNotStarted, NewStatus: model.StatusCompleted,
		Unblocked: []string{"n-2"},
	}
	if err := pub.Publish(context.Background(), TopicStatusChanged, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got StatusChanged
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.NodeID != "n-1" || got.NewStatus != model.StatusCompleted || len(got.Unblocked) != 1 {
			t.Errorf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, nil)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicNodesMerged, NodesMerged{}); err == nil {
		t.Error("expected error publishing with a cancelled context")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, nil)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	err = pub.Publish(context.Background(), TopicNodesMerged, NodesMerged{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}
