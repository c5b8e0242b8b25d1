package net

import (
	"log"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendBuffer is how many outgoing messages a peer may lag behind before it
// is dropped.
const sendBuffer = 64

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Peer is one live-drawing viewer attached to a frame.
type Peer struct {
	ID   string
	Room string
	conn Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// Send queues data for the peer. It reports false if the peer is gone or
// too far behind.
func (p *Peer) Send(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *Peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *Peer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[HUB] Error sending to %s: %v", p.conn.RemoteAddr(), err)
				p.close()
				return
			}
		}
	}
}

// Hub tracks connected peers per frame and relays session updates between
// them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Peer]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Peer]bool)}
}

// Join registers conn as a peer of room and starts its writer.
func (h *Hub) Join(conn Conn, room string) *Peer {
	p := &Peer{
		ID:   uuid.NewString(),
		Room: room,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Peer]bool)
	}
	h.rooms[room][p] = true
	h.mu.Unlock()

	go p.writeLoop()
	log.Printf("[HUB] Peer %s joined %s from %s", p.ID[:8], room, conn.RemoteAddr())
	return p
}

// Remove disconnects p.
func (h *Hub) Remove(p *Peer) {
	h.mu.Lock()
	if peers, ok := h.rooms[p.Room]; ok {
		delete(peers, p)
		if len(peers) == 0 {
			delete(h.rooms, p.Room)
		}
	}
	h.mu.Unlock()
	p.close()
	log.Printf("[HUB] Peer %s left %s", p.ID[:8], p.Room)
}

// CloseRoom disconnects every peer of room, e.g. when its frame is
// deleted. It returns how many peers were dropped.
func (h *Hub) CloseRoom(room string) int {
	h.mu.Lock()
	peers := h.rooms[room]
	delete(h.rooms, room)
	h.mu.Unlock()

	for p := range peers {
		p.close()
	}
	if len(peers) > 0 {
		log.Printf("[HUB] Closed %s, dropped %d peers", room, len(peers))
	}
	return len(peers)
}

// Serve reads messages from p until the connection fails, passing each to
// handle, then removes p.
func (h *Hub) Serve(p *Peer, handle func(*Peer, []byte)) {
	defer h.Remove(p)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[HUB] Peer %s disconnected: %v", p.ID[:8], err)
			}
			return
		}
		handle(p, data)
	}
}

// Broadcast sends data to every peer of room except exclude. Peers that
// cannot keep up are dropped. It returns how many peers were sent to.
func (h *Hub) Broadcast(room string, data []byte, exclude *Peer) int {
	h.mu.RLock()
	var slow []*Peer
	sent := 0
	for p := range h.rooms[room] {
		if p == exclude {
			continue
		}
		if p.Send(data) {
			sent++
		} else {
			slow = append(slow, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range slow {
		h.Remove(p)
	}
	return sent
}

// Count returns the number of peers in room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
