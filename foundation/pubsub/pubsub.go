// Package pubsub provides a flooding publish/subscribe bus between nodes
// over websocket connections. Every frame received for the first time is
// delivered locally when the topic is subscribed and relayed to every
// other connection.
package pubsub

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrShutdown is returned when the bus is used after Shutdown.
var ErrShutdown = errors.New("bus is shut down")

const (
	// maxSeen is the number of frame ids remembered for duplicate
	// suppression.
	maxSeen = 10_000

	// sendBuffer is the number of frames queued per connection before
	// frames for that connection are dropped.
	sendBuffer = 100

	// pingInterval is how often an idle connection is pinged.
	pingInterval = 10 * time.Second

	// writeWait is the time allowed to write a frame.
	writeWait = 5 * time.Second
)

// =============================================================================

// Message is the frame carried between nodes.
type Message struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	From  string `json:"from"`
	Data  []byte `json:"data"`
}

// Config represents the settings for a bus.
type Config struct {
	ID        string
	Topics    []string
	URLFormat string // Format for dialing a host, ex. "ws://%s/v1/node/pubsub".
	Buffer    int
	EvHandler func(v string, args ...any)
}

// Bus manages the set of connections to other nodes.
type Bus struct {
	id        string
	urlFormat string
	topics    map[string]struct{}
	evHandler func(v string, args ...any)
	upgrader  websocket.Upgrader
	dialer    *websocket.Dialer
	messages  chan Message
	shut      chan struct{}
	wg        sync.WaitGroup

	mu       sync.RWMutex
	conns    map[*conn]struct{}
	seen     map[string]struct{}
	seenList []string
	closed   bool
}

// conn represents a single websocket connection with its write queue.
type conn struct {
	ws     *websocket.Conn
	remote string
	send   chan Message
	once   sync.Once
}

// New constructs a bus subscribed to the specified topics.
func New(cfg Config) *Bus {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 256
	}

	topics := make(map[string]struct{})
	for _, topic := range cfg.Topics {
		topics[topic] = struct{}{}
	}

	return &Bus{
		id:        cfg.ID,
		urlFormat: cfg.URLFormat,
		topics:    topics,
		evHandler: ev,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dialer:   websocket.DefaultDialer,
		messages: make(chan Message, buffer),
		shut:     make(chan struct{}),
		conns:    make(map[*conn]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Messages returns the channel that receives frames for subscribed topics.
func (b *Bus) Messages() <-chan Message {
	return b.messages
}

// Publish sends the data to every connected node under the topic.
func (b *Bus) Publish(topic string, data []byte) error {
	msg := Message{
		ID:    uuid.NewString(),
		Topic: topic,
		From:  b.id,
		Data:  data,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrShutdown
	}
	b.markSeen(msg.ID)
	b.mu.Unlock()

	n := b.broadcast(msg, nil)
	b.evHandler("pubsub: Publish: topic[%s]: id[%s]: conns[%d]", topic, msg.ID, n)

	return nil
}

// Connected reports if there is a connection to the specified remote.
func (b *Bus) Connected(remote string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.conns {
		if c.remote == remote {
			return true
		}
	}
	return false
}

// Peers returns the number of open connections.
func (b *Bus) Peers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.conns)
}

// =============================================================================

// Connect dials the specified host unless a connection already exists.
func (b *Bus) Connect(host string) error {
	if b.Connected(host) {
		return nil
	}

	url := fmt.Sprintf(b.urlFormat, host)
	ws, _, err := b.dialer.Dial(url, http.Header{"X-Node-Id": []string{b.id}})
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c, err := b.register(ws, host)
	if err != nil {
		return err
	}

	b.evHandler("pubsub: Connect: connected: %s", host)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.readLoop(c)
	}()

	return nil
}

// Accept upgrades an inbound HTTP request into a connection and reads from
// it until the connection closes.
func (b *Bus) Accept(w http.ResponseWriter, r *http.Request) error {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	remote := r.Header.Get("X-Node-Id")
	if remote == "" {
		remote = r.RemoteAddr
	}

	c, err := b.register(ws, remote)
	if err != nil {
		return err
	}

	b.evHandler("pubsub: Accept: connected: %s", remote)

	b.wg.Add(1)
	defer b.wg.Done()

	b.readLoop(c)

	return nil
}

// Shutdown closes every connection and waits for the read loops to end.
func (b *Bus) Shutdown() {
	b.evHandler("pubsub: shutdown: started")
	defer b.evHandler("pubsub: shutdown: completed")

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.shut)

	conns := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		b.drop(c)
	}

	b.wg.Wait()
}

// =============================================================================

// register adds the websocket to the set of connections and starts its
// writer.
func (b *Bus) register(ws *websocket.Conn, remote string) (*conn, error) {
	c := conn{
		ws:     ws,
		remote: remote,
		send:   make(chan Message, sendBuffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ws.Close()
		return nil, ErrShutdown
	}
	b.conns[&c] = struct{}{}
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.writeLoop(&c)
	}()

	return &c, nil
}

// drop removes the connection and closes it. It is safe to call more
// than once.
func (b *Bus) drop(c *conn) {
	c.once.Do(func() {
		b.mu.Lock()
		delete(b.conns, c)
		b.mu.Unlock()

		close(c.send)
		c.ws.Close()

		b.evHandler("pubsub: drop: disconnected: %s", c.remote)
	})
}

// readLoop handles the frames arriving on a connection.
func (b *Bus) readLoop(c *conn) {
	defer b.drop(c)

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.evHandler("pubsub: readLoop: %s: ERROR: %s", c.remote, err)
			}
			return
		}

		b.mu.Lock()
		_, dup := b.seen[msg.ID]
		if !dup {
			b.markSeen(msg.ID)
		}
		b.mu.Unlock()

		if dup || msg.From == b.id {
			continue
		}

		// Flood the frame to everyone else before handling it here.
		b.broadcast(msg, c)

		if _, subscribed := b.topics[msg.Topic]; !subscribed {
			continue
		}

		select {
		case b.messages <- msg:
		case <-b.shut:
			return
		}
	}
}

// writeLoop writes queued frames to the connection and keeps it alive.
func (b *Bus) writeLoop(c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				b.evHandler("pubsub: writeLoop: %s: ERROR: %s", c.remote, err)
				go b.drop(c)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				go b.drop(c)
				return
			}
		}
	}
}

// broadcast queues the frame on every connection except the one it came
// from. A connection with a full queue misses the frame.
func (b *Bus) broadcast(msg Message, from *conn) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var n int
	for c := range b.conns {
		if c == from {
			continue
		}

		select {
		case c.send <- msg:
			n++
		default:
			b.evHandler("pubsub: broadcast: %s: WARNING: queue full, frame dropped", c.remote)
		}
	}

	return n
}

// markSeen records the frame id. The caller must hold the lock.
func (b *Bus) markSeen(id string) {
	b.seen[id] = struct{}{}
	b.seenList = append(b.seenList, id)

	if len(b.seenList) > maxSeen {
		delete(b.seen, b.seenList[0])
		b.seenList = b.seenList[1:]
	}
}
