// Package stream fans studio events out to server-sent event clients.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Maximum number of concurrent SSE connections allowed
	MaxConcurrentConnections = 256
	// Buffer size for each client's message channel
	ClientChannelBuffer = 64
	// How often to send keep-alive messages
	KeepAliveInterval = 30 * time.Second
	// How often to cleanup dead connections
	CleanupInterval = 60 * time.Second
	// Buffer size for hub broadcast queue
	HubBroadcastBuffer = 1024
)

// Event kinds published by the studio.
const (
	KindRender = "render"
	KindFPS    = "fps"
	KindChain  = "chain"
)

// Message is one event. Msg holds the JSON payload.
type Message struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// Client is a connected SSE client.
type Client struct {
	ID           string
	RemoteAddr   string
	UserAgent    string
	Connected    int64 // Unix seconds
	LastSeen     int64 // Unix seconds, updated on every delivery
	MessagesSent int64

	ch   chan Message
	done chan struct{}
	once sync.Once
}

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

// Messages delivers broadcast messages.
func (c *Client) Messages() <-chan Message { return c.ch }

// Stats are cumulative hub counters.
type Stats struct {
	ActiveConnections   int64 `json:"active_connections"`
	TotalMessages       int64 `json:"total_messages"`
	MaxConnections      int64 `json:"max_connections"`
	DroppedBroadcasts   int64 `json:"dropped_broadcasts"`
	DroppedClientMsgs   int64 `json:"dropped_client_msgs"`
	RejectedConnections int64 `json:"rejected_connections"`
}

// Hub manages SSE clients. Publishing never blocks: when the hub queue or a
// client queue is full the message is dropped and counted.
type Hub struct {
	clients           sync.Map // map[*Client]struct{}
	activeCount       int64
	totalMessages     int64
	droppedBroadcasts int64
	droppedClientMsgs int64
	rejectedConns     int64
	nextID            int64

	broadcast    chan Message
	shutdown     chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
	log          *logrus.Entry
}

// NewHub starts a hub and its background loops.
func NewHub() *Hub {
	h := newHub(HubBroadcastBuffer)
	go h.runBroadcastLoop()
	go h.cleanupRoutine()
	return h
}

func newHub(buffer int) *Hub {
	return &Hub{
		broadcast: make(chan Message, buffer),
		shutdown:  make(chan struct{}),
		now:       time.Now,
		log:       logrus.WithField("component", "stream"),
	}
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		ActiveConnections:   atomic.LoadInt64(&h.activeCount),
		TotalMessages:       atomic.LoadInt64(&h.totalMessages),
		MaxConnections:      MaxConcurrentConnections,
		DroppedBroadcasts:   atomic.LoadInt64(&h.droppedBroadcasts),
		DroppedClientMsgs:   atomic.LoadInt64(&h.droppedClientMsgs),
		RejectedConnections: atomic.LoadInt64(&h.rejectedConns),
	}
}

// AddClient registers a client, or returns nil when the hub is full or shut
// down.
func (h *Hub) AddClient(remoteAddr, userAgent string) *Client {
	select {
	case <-h.shutdown:
		return nil
	default:
	}
	if atomic.AddInt64(&h.activeCount, 1) > MaxConcurrentConnections {
		atomic.AddInt64(&h.activeCount, -1)
		atomic.AddInt64(&h.rejectedConns, 1)
		h.log.WithField("remote", remoteAddr).Warn("connection limit reached, rejecting client")
		return nil
	}
	now := h.now().Unix()
	c := &Client{
		ID:         fmt.Sprintf("%d-%s", atomic.AddInt64(&h.nextID, 1), remoteAddr),
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		Connected:  now,
		LastSeen:   now,
		ch:         make(chan Message, ClientChannelBuffer),
		done:       make(chan struct{}),
	}
	h.clients.Store(c, struct{}{})
	h.log.WithFields(logrus.Fields{"client": c.ID, "total": atomic.LoadInt64(&h.activeCount)}).Debug("client connected")
	return c
}

// RemoveClient drops c. Safe to call more than once.
func (h *Hub) RemoveClient(c *Client) {
	if _, ok := h.clients.LoadAndDelete(c); !ok {
		return
	}
	atomic.AddInt64(&h.activeCount, -1)
	c.once.Do(func() { close(c.done) })
	h.log.WithFields(logrus.Fields{"client": c.ID, "total": atomic.LoadInt64(&h.activeCount)}).Debug("client disconnected")
}

// Broadcast enqueues msg for fan-out without blocking the caller.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		atomic.AddInt64(&h.droppedBroadcasts, 1)
	}
}

// Publish encodes v as JSON and broadcasts it under kind.
func (h *Hub) Publish(kind string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).WithField("kind", kind).Warn("dropping unencodable event")
		return
	}
	h.Broadcast(Message{Type: kind, Msg: string(b)})
}

// PublishFPS reports the preview frame rate, rounded to whole frames.
func (h *Hub) PublishFPS(fps float64) {
	h.Publish(KindFPS, map[string]float64{"fps": math.Round(fps)})
}

func (h *Hub) runBroadcastLoop() {
	for {
		select {
		case msg := <-h.broadcast:
			h.deliver(msg)
		case <-h.shutdown:
			return
		}
	}
}

func (h *Hub) deliver(msg Message) {
	now := h.now().Unix()
	h.clients.Range(func(key, _ any) bool {
		c := key.(*Client)
		select {
		case c.ch <- msg:
			atomic.StoreInt64(&c.LastSeen, now)
			atomic.AddInt64(&c.MessagesSent, 1)
			atomic.AddInt64(&h.totalMessages, 1)
		default:
			atomic.AddInt64(&h.droppedClientMsgs, 1)
		}
		return true
	})
}

func (h *Hub) cleanupRoutine() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.cleanupStaleConnections()
		case <-h.shutdown:
			return
		}
	}
}

// cleanupStaleConnections drops clients that have not taken a message in
// two cleanup intervals. Live handlers refresh LastSeen on keep-alive.
func (h *Hub) cleanupStaleConnections() {
	threshold := h.now().Unix() - int64(CleanupInterval.Seconds()*2)
	var stale []*Client
	h.clients.Range(func(key, _ any) bool {
		c := key.(*Client)
		if atomic.LoadInt64(&c.LastSeen) < threshold {
			stale = append(stale, c)
		}
		return true
	})
	if len(stale) > 0 {
		h.log.WithField("count", len(stale)).Info("cleaning up stale connections")
		for _, c := range stale {
			h.RemoveClient(c)
		}
	}
}

// Shutdown stops the loops and disconnects every client.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.shutdown)
		h.clients.Range(func(key, _ any) bool {
			h.RemoveClient(key.(*Client))
			return true
		})
		h.log.Info("stream hub shut down")
	})
}

// ServeHTTP streams events to one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	c := h.AddClient(r.RemoteAddr, r.UserAgent())
	if c == nil {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}
	defer h.RemoveClient(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("Content-Encoding")

	if _, err := io.WriteString(w, formatSSE(Message{Type: "connected", Msg: `{"msg":"SSE connection established"}`})); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.ch:
			if _, err := io.WriteString(w, formatSSE(msg)); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			atomic.StoreInt64(&c.LastSeen, h.now().Unix())
			flusher.Flush()
		}
	}
}

// formatSSE renders msg as an SSE frame. Multi-line payloads become several
// data lines.
func formatSSE(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", msg.Type)
	for _, line := range strings.Split(msg.Msg, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}
