package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

var _ domain.ViewObserver = new(Broadcaster)

const (
	MessageSnapshot = "snapshot"
	MessageUpdate   = "update"

	DefaultSendBuffer = 64

	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 1024
)

// Message is the envelope of everything sent to a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotFunc returns the full current view state.
type SnapshotFunc func() interface{}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster pushes a snapshot to every new WebSocket client, then every
// region update. A client whose send queue is full is disconnected.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
	buffer   int
	log      logger.Logger
}

func NewBroadcaster(snapshot SnapshotFunc, sendBuffer int) *Broadcaster {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}

	return &Broadcaster{
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		snapshot: snapshot,
		buffer:   sendBuffer,
		log:      logger.DefaultLogger,
	}
}

func (b *Broadcaster) WithLogger(lg logger.Logger) *Broadcaster {
	b.log = lg
	return b
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.clients)
}

func (b *Broadcaster) OnRegionUpdate(u domain.RegionUpdate) {
	msg, err := json.Marshal(Message{Type: MessageUpdate, Data: u})
	if err != nil {
		b.log.WithField("region", u.Region).Errorf("Can't marshal update: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		select {
		case c.send <- msg:
		default:
			b.log.WithField("client", c.id).Warnf("Client is too slow, disconnecting")
			b.drop(c)
		}
	}
}

func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Errorf("Websocket upgrade error: %v", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, b.buffer),
	}
	if err := b.register(c); err != nil {
		b.log.WithField("client", c.id).Errorf("Can't send snapshot: %v", err)
		conn.Close()
		return
	}
	b.log.WithField("client", c.id).Debugf("Websocket client connected")

	go b.writePump(c)
	b.readPump(c)
}

// register queues the snapshot before the client becomes visible to
// OnRegionUpdate, so it is always the first message.
func (b *Broadcaster) register(c *client) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, err := json.Marshal(Message{Type: MessageSnapshot, Data: b.snapshot()})
	if err != nil {
		return err
	}
	c.send <- msg
	b.clients[c] = struct{}{}

	return nil
}

func (b *Broadcaster) unregister(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.drop(c)
}

// drop must be called with mu held.
func (b *Broadcaster) drop(c *client) {
	if _, ok := b.clients[c]; !ok {
		return
	}
	delete(b.clients, c)
	close(c.send)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		b.drop(c)
	}
}

func (b *Broadcaster) readPump(c *client) {
	defer func() {
		b.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
