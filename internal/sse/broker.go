// Package sse streams per-user "notes changed" events over Server-Sent Events.
//
// Positional indexes shift when another session of the same user deletes a
// note. Subscribers receive an event for every change to their own notebook
// so they can re-list before addressing a note by index again.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/starford/jotter/internal/models"
)

// Event types published for notebook changes.
const (
	NoteCreated = "note.created"
	NoteUpdated = "note.updated"
	NoteDeleted = "note.deleted"
)

// Event represents an SSE event to deliver to one user's subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type subscriber struct {
	user    models.UserID
	session string
	ch      chan []byte
}

type publishReq struct {
	user  models.UserID
	event Event
}

// Broker manages SSE client connections keyed by user and session.
//
// A single event loop owns the client table. Public methods talk to it
// through channels, so no mutexes are required.
type Broker struct {
	subscribeCh   chan subscriber
	unsubscribeCh chan chan []byte
	publishCh     chan publishReq
	dropCh        chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan subscriber),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan publishReq, 256),
		dropCh:        make(chan string),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]subscriber)

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case s := <-b.subscribeCh:
			clients[s.ch] = s

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case session := <-b.dropCh:
			for ch, s := range clients {
				if s.session == session {
					delete(clients, ch)
					close(ch)
				}
			}

		case req := <-b.publishCh:
			payload, err := json.Marshal(req.event.Data)
			if err != nil {
				continue
			}
			raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", req.event.Type, payload))
			for ch, s := range clients {
				if s.user != req.user {
					continue
				}
				select {
				case ch <- raw:
				default:
					// Client buffer full; skip to avoid blocking the loop.
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a stream for user opened under session.
func (b *Broker) Subscribe(user models.UserID, session string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscriber{user: user, session: session, ch: ch}:
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
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// DropSession closes every stream opened under session.
func (b *Broker) DropSession(session string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.dropCh <- session:
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
	case b.countReqCh <- resp:
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

// Publish sends event to the subscribers of user.
func (b *Broker) Publish(user models.UserID, event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- publishReq{user: user, event: event}:
	case <-b.stopped:
	}
}

// Stream writes messages from ch to w until the client disconnects or ch
// is closed.
func Stream(w http.ResponseWriter, r *http.Request, ch <-chan []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
