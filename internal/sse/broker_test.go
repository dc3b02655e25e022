package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// drain collects what is buffered on sub after a short settle.
func drain(sub *Subscription) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func count(msgs []string, eventType string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+eventType+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	sub := b.Subscribe("", 0)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(sub)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel still open after unsubscribe")
	}
}

func TestPublishCommitDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	sub := b.Subscribe("", 0)
	defer b.Unsubscribe(sub)

	b.PublishCommit(CommitEvent{Branch: "main", SHA: "abc", Operation: "create", Template: "foo"})

	select {
	case msg := <-sub.C:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\nevent: commit\n") {
			t.Errorf("missing id or event type in %q", s)
		}
		if !strings.Contains(s, `"sha":"abc"`) || !strings.Contains(s, `"template":"foo"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	if msgs := drain(sub); count(msgs, EventCatalogsChanged) != 1 || !strings.Contains(msgs[0], `"sha":"abc"`) {
		t.Errorf("refresh = %q", msgs)
	}
}

func TestCatalogRefreshThrottledPerBranch(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	sub := b.Subscribe("", 0)
	defer b.Unsubscribe(sub)

	b.PublishCommit(CommitEvent{Branch: "main", SHA: "1", Operation: "update"})
	b.PublishCommit(CommitEvent{Branch: "main", SHA: "2", Operation: "update"})
	b.PublishCommit(CommitEvent{Branch: "draft", SHA: "3", Operation: "update"})

	msgs := drain(sub)
	if n := count(msgs, EventCommit); n != 3 {
		t.Errorf("commit events = %d, want 3", n)
	}
	if n := count(msgs, EventCatalogsChanged); n != 2 {
		t.Errorf("refresh events = %d, want 2 (one per branch)", n)
	}
}

func TestSubscribeFiltersByBranch(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	draft := b.Subscribe("draft", 0)
	defer b.Unsubscribe(draft)

	b.PublishCommit(CommitEvent{Branch: "main", SHA: "1", Operation: "update"})
	b.PublishCommit(CommitEvent{Branch: "draft", SHA: "2", Operation: "update"})
	b.Publish(Event{Type: "ping", Data: map[string]string{"at": "now"}})

	msgs := drain(draft)
	if count(msgs, EventCommit) != 1 || !strings.Contains(msgs[0], `"sha":"2"`) {
		t.Errorf("draft got %q", msgs)
	}
	if count(msgs, "ping") != 1 {
		t.Errorf("broadcast event missing from %q", msgs)
	}
}

func TestSubscribeReplaysAfterLastID(t *testing.T) {
	b := NewBrokerWithOptions(Options{RefreshThrottle: time.Hour, History: 3})
	defer b.Close()

	for _, sha := range []string{"1", "2", "3", "4"} {
		b.PublishCommit(CommitEvent{Branch: "main", SHA: sha, Operation: "update"})
	}
	// ids: 1 commit, 2 catalogs.changed, 3..5 commits 2..4; history keeps 3..5.
	sub := b.Subscribe("main", 3)
	defer b.Unsubscribe(sub)

	msgs := drain(sub)
	if len(msgs) != 2 {
		t.Fatalf("replayed %d messages, want 2: %q", len(msgs), msgs)
	}
	if !strings.HasPrefix(msgs[0], "id: 4\n") || !strings.Contains(msgs[1], `"sha":"4"`) {
		t.Errorf("replay = %q", msgs)
	}

	fresh := b.Subscribe("main", 0)
	defer b.Unsubscribe(fresh)
	if msgs := drain(fresh); len(msgs) != 0 {
		t.Errorf("subscriber without id got replay %q", msgs)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	b.PublishCommit(CommitEvent{Branch: "main", SHA: "old", Operation: "update"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?branch=main", nil)
	req.Header.Set("Last-Event-ID", "1")
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "ping", Data: map[string]string{"at": "now"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: ping") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, "id: 2\nevent: "+EventCatalogsChanged) {
		t.Errorf("missed refresh not replayed: %q", body)
	}
	if strings.Contains(body, "id: 1\n") {
		t.Errorf("message at Last-Event-ID replayed: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandlerHeartbeat(t *testing.T) {
	b := NewBrokerWithOptions(Options{Heartbeat: 20 * time.Millisecond})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx))

	if !strings.Contains(w.Body.String(), ": keepalive\n\n") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	sub := b.Subscribe("", 0)
	defer b.Unsubscribe(sub)

	for i := 0; i < 70; i++ {
		b.PublishCommit(CommitEvent{Branch: "main", SHA: "x", Operation: "update"})
	}
	if n := len(drain(sub)); n != 64 {
		t.Errorf("buffered = %d, want 64", n)
	}
}

func TestCloseStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	sub := b.Subscribe("", 0)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "ping"})
	b.PublishCommit(CommitEvent{Branch: "main"})
	if _, ok := <-b.Subscribe("", 0).C; ok {
		t.Error("subscribe after close returned an open channel")
	}
}
