package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/events"
)

func TestEventHub_BroadcastAndReceive(t *testing.T) {
	hub := NewEventHub()
	client := hub.subscribe(nil)
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicStatusChanged, []byte(`{"node_id":"nd-1"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicStatusChanged || string(evt.Data) != `{"node_id":"nd-1"}` || evt.ID != 1 {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventHub_TopicFiltering(t *testing.T) {
	hub := NewEventHub()
	client := hub.subscribe([]string{"tender.extraction.*"})
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicStatusChanged, []byte(`{}`))
	hub.broadcast(events.TopicExtractionFailed, []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicExtractionFailed {
			t.Fatalf("expected %q, got %q", events.TopicExtractionFailed, evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventHub_Unsubscribe(t *testing.T) {
	hub := NewEventHub()
	client := hub.subscribe(nil)
	hub.unsubscribe(client)

	hub.broadcast(events.TopicStatusChanged, []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventHub_EventsSince(t *testing.T) {
	hub := NewEventHub()
	if evts := hub.eventsSince(0); len(evts) != 0 {
		t.Fatalf("expected 0 events, got %d", len(evts))
	}
	for range 5 {
		hub.broadcast(events.TopicStatusChanged, []byte(`{}`))
	}
	evts := hub.eventsSince(2)
	if len(evts) != 3 || evts[0].ID != 3 || evts[2].ID != 5 {
		t.Fatalf("unexpected replay: %d events", len(evts))
	}
}

func TestEventHub_RingBufferWrap(t *testing.T) {
	hub := NewEventHub()
	for range ringSize + 100 {
		hub.broadcast(events.TopicStatusChanged, []byte(`{}`))
	}
	evts := hub.eventsSince(0)
	if len(evts) != ringSize {
		t.Fatalf("expected %d events, got %d", ringSize, len(evts))
	}
	if evts[0].ID != 101 {
		t.Fatalf("expected oldest event ID=101, got %d", evts[0].ID)
	}
}

type countingPublisher struct{ n int }

func (p *countingPublisher) Publish(context.Context, string, any) error { p.n++; return nil }
func (p *countingPublisher) Close() error                               { return nil }

func TestEventHub_PublisherForwards(t *testing.T) {
	hub := NewEventHub()
	next := &countingPublisher{}
	pub := hub.Publisher(next)

	if err := pub.Publish(context.Background(), events.TopicNodesMerged, events.NodesMerged{Project: "p"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if next.n != 1 {
		t.Fatalf("forwarded %d times, want 1", next.n)
	}
	evts := hub.eventsSince(0)
	if len(evts) != 1 || !strings.Contains(string(evts[0].Data), `"project":"p"`) {
		t.Fatalf("hub did not record the event: %+v", evts)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"tender.node.status_changed", "tender.node.status_changed", true},
		{"tender.node.status_changed", "tender.nodes.merged", false},
		{"tender.extraction.*", "tender.extraction.completed", true},
		{"tender.extraction.*", "tender.batch.completed", false},
		{"tender.>", "tender.batch.completed", true},
		{"tender.>", "other.topic", false},
		{"*.*.*", "tender.nodes.merged", true},
		{"*.*.*", "tender.nodes", false},
	} {
		if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

// stream runs the event stream handler until fn returns, then returns the
// response body.
func stream(t *testing.T, h http.Handler, path, lastID string, fn func()) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	fn()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	return rec.Body.String()
}

func TestEventStream_DeliversServiceEvents(t *testing.T) {
	srv, h, ids := newTestServer(t)
	body := stream(t, h, "/v1/events/stream", "", func() {
		if _, err := srv.svc.Complete(context.Background(), "tender", ids.form); err != nil {
			t.Errorf("Complete: %v", err)
		}
	})
	if !strings.Contains(body, "event:"+events.TopicStatusChanged) {
		t.Fatalf("expected status change event, got:\n%s", body)
	}
	if !strings.Contains(body, ids.form) {
		t.Fatalf("expected node id in payload, got:\n%s", body)
	}
}

func TestEventStream_Filters(t *testing.T) {
	srv, h, _ := newTestServer(t)
	body := stream(t, h, "/v1/events/stream?topics=tender.nodes.*&project=a", "", func() {
		srv.hub.broadcast(events.TopicStatusChanged, []byte(`{"project":"a"}`))
		srv.hub.broadcast(events.TopicNodesMerged, []byte(`{"project":"b","keep_id":"x"}`))
		srv.hub.broadcast(events.TopicNodesMerged, []byte(`{"project":"a","keep_id":"y"}`))
	})
	if strings.Contains(body, events.TopicStatusChanged) || strings.Contains(body, `"keep_id":"x"`) {
		t.Fatalf("filtered events leaked:\n%s", body)
	}
	if !strings.Contains(body, `"keep_id":"y"`) {
		t.Fatalf("expected matching event, got:\n%s", body)
	}
}

func TestEventStream_LastEventID(t *testing.T) {
	srv, h, _ := newTestServer(t)
	srv.hub.broadcast(events.TopicStatusChanged, []byte(`{"n":1}`))
	srv.hub.broadcast(events.TopicStatusChanged, []byte(`{"n":2}`))
	srv.hub.broadcast(events.TopicStatusChanged, []byte(`{"n":3}`))

	body := stream(t, h, "/v1/events/stream", "1", func() {})
	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":2}`) || !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected events 2 and 3, got:\n%s", body)
	}
}
