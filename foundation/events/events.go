// Package events allows for the registering and receiving of node events
// so they can be streamed to websocket clients.
package events

import (
	"fmt"
	"strings"
	"sync"
)

// Event is a node event in the "pkg: Func: text" shape the blockchain
// packages emit.
type Event struct {
	Source string
	Text   string
	Raw    string
}

// Parse splits an event into its source package and the rest of the text.
// An event without a source keeps the whole string as text.
func Parse(s string) Event {
	source, text, found := strings.Cut(s, ": ")
	if !found || strings.ContainsAny(source, " []") {
		return Event{Text: s, Raw: s}
	}

	return Event{Source: source, Text: text, Raw: s}
}

// Filter reports if an event should be dropped before it reaches any
// listener.
type Filter func(ev Event) bool

// MiningProgress drops the nonce reports emitted while a block is mined.
func MiningProgress(ev Event) bool {
	return ev.Source == "database" && strings.Contains(ev.Text, "MINING: nonce[")
}

// =============================================================================

// listener is a registered channel and the sources it wants.
type listener struct {
	ch      chan string
	sources map[string]struct{}
}

// wants reports if the listener receives events from the source.
func (l listener) wants(source string) bool {
	if len(l.sources) == 0 {
		return true
	}
	_, exists := l.sources[source]
	return exists
}

// Events maintains a mapping of unique id and listeners so goroutines
// can register and receive events.
type Events struct {
	filters []Filter
	m       map[string]listener
	mu      sync.RWMutex
}

// New constructs an events for registering and receiving events. Events
// matching any of the filters are never sent.
func New(filters ...Filter) *Events {
	return &Events{
		filters: filters,
		m:       make(map[string]listener),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, l := range evt.m {
		delete(evt.m, id)
		close(l.ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used to
// receive events. When sources are provided only events from those
// packages are received.
func (evt *Events) Acquire(id string, sources ...string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	l, exists := evt.m[id]
	if exists {
		return l.ch
	}

	// Since a message will be dropped if the websocket receiver is
	// not ready to receive, this arbitrary buffer should give the receiver
	// enough time to not lose a message. Websocket send could take long.
	const messageBuffer = 100

	l = listener{
		ch:      make(chan string, messageBuffer),
		sources: make(map[string]struct{}, len(sources)),
	}
	for _, source := range sources {
		if source = strings.TrimSpace(source); source != "" {
			l.sources[source] = struct{}{}
		}
	}

	evt.m[id] = l
	return l.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	l, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(l.ch)
	return nil
}

// Send signals a message to every interested listener. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	ev := Parse(s)
	for _, drop := range evt.filters {
		if drop(ev) {
			return
		}
	}

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, l := range evt.m {
		if !l.wants(ev.Source) {
			continue
		}

		select {
		case l.ch <- ev.Raw:
		default:
		}
	}
}
