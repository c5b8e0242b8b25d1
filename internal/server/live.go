package server

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"Storyboard/internal/editor"
	snet "Storyboard/internal/net"
	"Storyboard/internal/state"
)

// LiveMessage is one websocket message in either direction. Clients send
// pointer, mode, style and history messages; the server answers with
// "session" snapshots and relays "point" updates to other viewers.
type LiveMessage struct {
	Type  string             `json:"type"`
	X     float64            `json:"x,omitempty"`
	Y     float64            `json:"y,omitempty"`
	On    bool               `json:"on,omitempty"`
	New   bool               `json:"new,omitempty"`
	Style *state.Style       `json:"style,omitempty"`
	Data  *state.DrawingData `json:"data,omitempty"`
	Error string             `json:"error,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-host pages and the configured front ends.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.CORS {
		if o == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Live upgrade for %s failed: %v", id, err)
		return
	}
	ed := s.editor(id)
	peer := s.hub.Join(conn, id)
	s.sendSession(peer, ed)
	s.hub.Serve(peer, func(p *snet.Peer, data []byte) {
		s.handleLiveMessage(p, ed, data)
	})
}

func (s *Server) handleLiveMessage(p *snet.Peer, ed *editor.Editor, data []byte) {
	if !s.serving(p.Room, ed) {
		s.sendTo(p, LiveMessage{Type: "error", Error: "frame was deleted"})
		return
	}
	var msg LiveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendTo(p, LiveMessage{Type: "error", Error: "malformed message"})
		return
	}
	before := ed.Recorder().Version()
	// Moves reach other viewers as point messages; the full session goes
	// out once the stroke or edit is complete.
	settled := true
	switch msg.Type {
	case "mode":
		ed.SetDrawingMode(msg.On)
	case "style":
		if msg.Style != nil {
			applied := ed.SetStyle(*msg.Style)
			s.sendTo(p, LiveMessage{Type: "style", Style: &applied})
		}
	case "down":
		settled = false
		ed.PointerDown(msg.X, msg.Y)
		if ed.Recorder().Dragging() {
			s.relay(p, LiveMessage{Type: "point", X: msg.X, Y: msg.Y, New: true})
		}
	case "move":
		settled = false
		if ed.Recorder().Dragging() {
			ed.PointerMove(msg.X, msg.Y)
			s.relay(p, LiveMessage{Type: "point", X: msg.X, Y: msg.Y})
		}
	case "up":
		ed.PointerUp()
	case "clear":
		ed.Clear()
	case "undo":
		ed.Undo()
	case "redo":
		ed.Redo()
	default:
		s.sendTo(p, LiveMessage{Type: "error", Error: "unknown message type " + msg.Type})
		return
	}
	if settled && ed.Recorder().Version() != before {
		s.broadcastSession(p.Room, ed, nil)
	}
}

// broadcastSession pushes the stored session to every viewer of room
// except exclude.
func (s *Server) broadcastSession(room string, ed *editor.Editor, exclude *snet.Peer) {
	data := ed.Recorder().Data()
	msg, err := json.Marshal(LiveMessage{Type: "session", Data: &data})
	if err != nil {
		log.Printf("[SERVER] Encode session: %v", err)
		return
	}
	s.hub.Broadcast(room, msg, exclude)
}

// Publish sends a frame's session to every live viewer of it.
func (s *Server) Publish(room string, data state.DrawingData) {
	msg, err := json.Marshal(LiveMessage{Type: "session", Data: &data})
	if err != nil {
		log.Printf("[SERVER] Encode session: %v", err)
		return
	}
	s.hub.Broadcast(room, msg, nil)
}

func (s *Server) sendSession(p *snet.Peer, ed *editor.Editor) {
	data := ed.Recorder().Data()
	s.sendTo(p, LiveMessage{Type: "session", Data: &data})
}

func (s *Server) relay(from *snet.Peer, msg LiveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.hub.Broadcast(from.Room, data, from)
}

func (s *Server) sendTo(p *snet.Peer, msg LiveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.Send(data)
}
