// Package sse streams commit notifications to browsers over Server-Sent Events.
//
// Every message carries a sequence id. A client that reconnects with
// Last-Event-ID gets the commits it missed from a bounded history, and a
// client may follow a single branch with ?branch=.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventCommit          = "commit"
	EventCatalogsChanged = "catalogs.changed"
)

// Event is one SSE message. An event without a Branch reaches every client.
type Event struct {
	Type   string `json:"type"`
	Branch string `json:"-"`
	Data   any    `json:"data"`
}

// CommitEvent describes a published template commit.
type CommitEvent struct {
	Branch    string `json:"branch"`
	SHA       string `json:"sha"`
	URL       string `json:"url,omitempty"`
	Operation string `json:"operation"`
	Template  string `json:"template,omitempty"`
}

// CatalogsChanged tells clients to refetch the index documents of a branch.
type CatalogsChanged struct {
	Branch string `json:"branch"`
	SHA    string `json:"sha"`
}

// Subscription is one connected client. C is closed when the client is
// removed or the broker stops.
type Subscription struct {
	C      <-chan []byte
	ch     chan []byte
	branch string
}

func (s *Subscription) wants(branch string) bool {
	return s.branch == "" || branch == "" || s.branch == branch
}

type frame struct {
	id     uint64
	branch string
	raw    []byte
}

type joinReq struct {
	sub   *Subscription
	after uint64
}

// Options tunes a Broker.
type Options struct {
	// RefreshThrottle is the minimum gap between two catalogs.changed
	// events of one branch.
	RefreshThrottle time.Duration
	// History is how many recent messages are kept for replay.
	History int
	// Heartbeat is the keep-alive comment interval of ServeHTTP.
	Heartbeat time.Duration
}

// Broker fans events out to subscribers. A single loop owns the subscriber
// set, the history and the refresh timestamps; public methods talk to it
// over unbuffered channels. The loop never blocks on a client.
type Broker struct {
	opts Options

	joinCh  chan joinReq
	leaveCh chan *Subscription
	eventCh chan Event
	countCh chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker with the given per-branch refresh throttle.
func NewBroker(refreshThrottle time.Duration) *Broker {
	return NewBrokerWithOptions(Options{RefreshThrottle: refreshThrottle})
}

// NewBrokerWithOptions creates a broker; zero fields take defaults.
func NewBrokerWithOptions(opts Options) *Broker {
	if opts.RefreshThrottle <= 0 {
		opts.RefreshThrottle = 2 * time.Second
	}
	if opts.History <= 0 {
		opts.History = 128
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	b := &Broker{
		opts:    opts,
		joinCh:  make(chan joinReq),
		leaveCh: make(chan *Subscription),
		eventCh: make(chan Event),
		countCh: make(chan chan int),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go b.run()
	return b
}

// hub is the state owned by the loop.
type hub struct {
	opts        Options
	subs        map[*Subscription]struct{}
	seq         uint64
	history     []frame
	lastRefresh map[string]time.Time
}

func (h *hub) emit(typ, branch string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	h.seq++
	f := frame{
		id:     h.seq,
		branch: branch,
		raw:    []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, typ, payload)),
	}
	h.history = append(h.history, f)
	if over := len(h.history) - h.opts.History; over > 0 {
		h.history = h.history[over:]
	}
	for s := range h.subs {
		if s.wants(branch) {
			deliver(s, f.raw)
		}
	}
}

func (h *hub) commit(ev CommitEvent) {
	h.emit(EventCommit, ev.Branch, ev)
	now := time.Now()
	if now.Sub(h.lastRefresh[ev.Branch]) >= h.opts.RefreshThrottle {
		h.lastRefresh[ev.Branch] = now
		h.emit(EventCatalogsChanged, ev.Branch, CatalogsChanged{Branch: ev.Branch, SHA: ev.SHA})
	}
}

// join adds s and replays the kept messages newer than after.
func (h *hub) join(s *Subscription, after uint64) {
	h.subs[s] = struct{}{}
	if after == 0 {
		return
	}
	for _, f := range h.history {
		if f.id > after && s.wants(f.branch) {
			deliver(s, f.raw)
		}
	}
}

// deliver drops the message for a client whose buffer is full.
func deliver(s *Subscription, raw []byte) {
	select {
	case s.ch <- raw:
	default:
	}
}

func (b *Broker) run() {
	defer close(b.stopped)
	h := &hub{
		opts:        b.opts,
		subs:        make(map[*Subscription]struct{}),
		lastRefresh: make(map[string]time.Time),
	}

	for {
		select {
		case <-b.stopCh:
			for s := range h.subs {
				close(s.ch)
			}
			return

		case req := <-b.joinCh:
			h.join(req.sub, req.after)

		case s := <-b.leaveCh:
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.ch)
			}

		case ev := <-b.eventCh:
			if c, ok := ev.Data.(CommitEvent); ok && ev.Type == EventCommit {
				h.commit(c)
				continue
			}
			h.emit(ev.Type, ev.Branch, ev.Data)

		case resp := <-b.countCh:
			resp <- len(h.subs)
		}
	}
}

// Close stops the loop and closes every subscription.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client following branch, or every branch when branch is
// empty. Messages with an id above lastID still in the history are
// delivered first.
func (b *Broker) Subscribe(branch string, lastID uint64) *Subscription {
	ch := make(chan []byte, 64)
	s := &Subscription{C: ch, ch: ch, branch: branch}
	if b.closed.Load() {
		close(ch)
		return s
	}
	select {
	case b.joinCh <- joinReq{sub: s, after: lastID}:
	case <-b.stopped:
		close(ch)
	}
	return s
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(s *Subscription) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- s:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the clients following its branch.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- event:
	case <-b.stopped:
	}
}

// PublishCommit announces a commit, followed by a throttled
// catalogs.changed for its branch.
func (b *Broker) PublishCommit(ev CommitEvent) {
	b.Publish(Event{Type: EventCommit, Branch: ev.Branch, Data: ev})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events[?branch=]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe(r.URL.Query().Get("branch"), lastID)
	defer b.Unsubscribe(sub)

	heartbeat := time.NewTicker(b.opts.Heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
