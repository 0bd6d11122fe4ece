// Package sse streams preview events to browsers as Server-Sent Events.
//
// Two events exist: content.changed for every file the watcher saw, and
// site.rebuilt once a build finished. Rebuild notifications are throttled and
// the newest one is replayed to clients that connect later, so a page that
// reloads after a rebuild still learns which build it is looking at.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types published by the broker.
const (
	EventContentChanged = "content.changed"
	EventSiteRebuilt    = "site.rebuilt"
)

const (
	defaultThrottle  = 2 * time.Second
	defaultKeepAlive = 15 * time.Second
	clientBuffer     = 64
)

// Event is one message for connected clients. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Change is the payload of a content.changed event.
type Change struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Broker fans events out to subscribers. All mutable state lives in the
// goroutine started by NewBroker; methods only send on channels.
type Broker struct {
	throttle  time.Duration
	keepAlive time.Duration

	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	rebuilt chan any
	count   chan chan int

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option customises a Broker.
type Option func(*Broker)

// WithKeepAlive sets how often idle streams receive a comment line.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// NewBroker starts a broker that delivers at most one site.rebuilt per
// rebuildThrottle. A rebuild inside the window is held and delivered when the
// window closes, carrying the newest payload.
func NewBroker(rebuildThrottle time.Duration, opts ...Option) *Broker {
	if rebuildThrottle <= 0 {
		rebuildThrottle = defaultThrottle
	}
	b := &Broker{
		throttle:  rebuildThrottle,
		keepAlive: defaultKeepAlive,
		join:      make(chan chan []byte),
		leave:     make(chan chan []byte),
		events:    make(chan Event, 256),
		rebuilt:   make(chan any, 16),
		count:     make(chan chan int),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

// hub is the state owned by the broker goroutine.
type hub struct {
	clients map[chan []byte]struct{}
	seq     uint64
	// latest is the last delivered site.rebuilt frame, replayed on join.
	latest []byte

	lastRebuild time.Time
	held        any
	holding     bool
	window      *time.Timer
}

func (h *hub) frame(e Event) []byte {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil
	}
	h.seq++
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(h.seq, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(e.Type)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}

func (h *hub) send(msg []byte) {
	if msg == nil {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; it misses this event rather than stalling the others.
		}
	}
}

func (h *hub) deliverRebuild(data any) {
	h.lastRebuild = time.Now()
	msg := h.frame(Event{Type: EventSiteRebuilt, Data: data})
	if msg != nil {
		h.latest = msg
	}
	h.send(msg)
}

func (b *Broker) loop() {
	defer close(b.stopped)

	h := &hub{clients: make(map[chan []byte]struct{})}
	var windowC <-chan time.Time

	for {
		select {
		case <-b.stop:
			if h.window != nil {
				h.window.Stop()
			}
			for ch := range h.clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			h.clients[ch] = struct{}{}
			if h.latest != nil {
				ch <- h.latest
			}

		case ch := <-b.leave:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}

		case e := <-b.events:
			h.send(h.frame(e))

		case data := <-b.rebuilt:
			wait := b.throttle - time.Since(h.lastRebuild)
			if wait <= 0 && !h.holding {
				h.deliverRebuild(data)
				continue
			}
			h.held, h.holding = data, true
			if h.window == nil {
				h.window = time.NewTimer(wait)
				windowC = h.window.C
			}

		case <-windowC:
			h.window, windowC = nil, nil
			if h.holding {
				h.deliverRebuild(h.held)
				h.held, h.holding = nil, false
			}

		case resp := <-b.count:
			resp <- len(h.clients)
		}
	}
}

// Close stops the broker and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel receives encoded frames and is
// closed by Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
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
	case b.count <- resp:
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

// Publish sends an event to all connected clients immediately.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- e:
	case <-b.stopped:
	}
}

// PublishChange announces one changed content file.
func (b *Broker) PublishChange(kind, path string) {
	b.Publish(Event{Type: EventContentChanged, Data: Change{Kind: kind, Path: path}})
}

// PublishRebuilt announces a finished rebuild, subject to the throttle.
func (b *Broker) PublishRebuilt(summary any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.rebuilt <- summary:
	case <-b.stopped:
	}
}

// ServeHTTP streams events until the client disconnects or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
