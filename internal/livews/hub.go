package livews

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/MJE43/levelup/internal/progression"
)

// MessageType is the envelope type of a websocket frame.
type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
)

// Message is the websocket envelope format.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans progression snapshots out to websocket clients. It implements
// progression.Renderer.
type Hub struct {
	clients map[*Client]bool

	mu      sync.Mutex
	lastSeq uint64
	latest  []byte

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	logger *log.Logger
}

// NewHub creates a hub. Call Run to start delivering frames.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     log.New(os.Stdout, "[WS] ", log.LstdFlags),
	}
}

// SetLogger replaces the hub logger. Must be called before Run.
func (h *Hub) SetLogger(l *log.Logger) {
	if l != nil {
		h.logger = l
	}
}

// Run delivers frames until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.mu.Lock()
			latest := h.latest
			h.mu.Unlock()
			if latest != nil {
				select {
				case c.send <- latest:
				default:
				}
			}
			h.logger.Printf("client_connected id=%s clients=%d", c.id, len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Printf("client_disconnected id=%s clients=%d", c.id, len(h.clients))
			}

		case data := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow client: drop the frame, a newer one follows.
				}
			}
		}
	}
}

func (h *Hub) enter(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Render implements progression.Renderer. Frames whose Seq is not newer
// than the last one broadcast are dropped.
func (h *Hub) Render(snap progression.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Printf("encode_failed seq=%d error=%v", snap.Seq, err)
		return
	}
	data, err := json.Marshal(&Message{Type: MsgSnapshot, Payload: payload})
	if err != nil {
		h.logger.Printf("encode_failed seq=%d error=%v", snap.Seq, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if snap.Seq <= h.lastSeq {
		return
	}
	h.lastSeq = snap.Seq
	h.latest = data

	select {
	case h.broadcast <- data:
	default:
		h.logger.Printf("broadcast_full seq=%d", snap.Seq)
	}
}

// Reset forgets the last sequence number. Call it when a new engine starts
// numbering from scratch.
func (h *Hub) Reset() {
	h.mu.Lock()
	h.lastSeq = 0
	h.latest = nil
	h.mu.Unlock()
}

// LastSeq returns the sequence number of the latest accepted frame.
func (h *Hub) LastSeq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeq
}
