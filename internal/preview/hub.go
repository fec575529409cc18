// Package preview streams rendered frames to browsers over WebSocket.
//
// Each connected client owns a single-slot mailbox. Publish overwrites the
// slot (latest frame wins) and never blocks the render goroutine; a slow
// client simply sees fewer frames.
//
// Wire format, one binary message per frame:
//
//	┌──────────────┬────────────┬──────────────────────────┐
//	│ seq (8, BE)  │ brightness │ R,G,B × pixel count       │
//	└──────────────┴────────────┴──────────────────────────┘
package preview

import (
	"encoding/binary"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Julusian/rpi-ws281x-artnet/internal/framestore"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// HeaderSize is the seq + brightness prefix of every message.
const HeaderSize = 9

const writeTimeout = 2 * time.Second

// Stats is a snapshot of hub activity.
type Stats struct {
	Clients   int
	Published uint64
	Drops     uint64
}

// Hub fans frames out to WebSocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu        sync.Mutex
	slots     map[*slot]struct{}
	published uint64
	drops     uint64 // from slots that already left
	closed    bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 4096,
			// The preview page is served from anywhere on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:   logger.With("component", "preview"),
		slots: make(map[*slot]struct{}),
	}
}

// Encode builds the binary preview message for a frame.
func Encode(frame framestore.Frame) []byte {
	msg := make([]byte, HeaderSize, HeaderSize+len(frame.Pixels)*pixel.BytesPerPixel)
	binary.BigEndian.PutUint64(msg[0:8], frame.Seq)
	msg[8] = frame.Brightness
	return append(msg, pixel.PackRGB(frame.Pixels)...)
}

// Publish offers a frame to every client. Never blocks.
// Safe to use as renderer.Options.OnFrame.
func (h *Hub) Publish(frame framestore.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.slots) == 0 {
		return
	}

	msg := Encode(frame)
	for s := range h.slots {
		s.put(frame.Seq, msg)
	}
	h.published++
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s := newSlot()
	if !h.register(s) {
		return
	}
	defer h.unregister(s)

	h.log.Info("preview client connected", "remote", r.RemoteAddr)

	// Reader: only needed to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.close()
				return
			}
		}
	}()

	for {
		msg, ok := s.next()
		if !ok {
			break
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			h.log.Debug("preview write failed", "remote", r.RemoteAddr, "error", err)
			break
		}
	}

	h.log.Info("preview client disconnected", "remote", r.RemoteAddr, "dropped", s.dropped())
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.slots {
		s.close()
	}
}

// Stats returns a snapshot.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{
		Clients:   len(h.slots),
		Published: h.published,
		Drops:     h.drops,
	}
	for s := range h.slots {
		st.Drops += s.dropped()
	}
	return st
}

func (h *Hub) register(s *slot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.slots[s] = struct{}{}
	return true
}

func (h *Hub) unregister(s *slot) {
	s.close()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.slots[s]; ok {
		delete(h.slots, s)
		h.drops += s.dropped()
	}
}
