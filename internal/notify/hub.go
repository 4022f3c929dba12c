// Package notify delivers published injects to live session observers over
// WebSocket connections.
package notify

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crucible-sim/crucible/internal/engine/domain"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// InjectMessage is the wire frame sent to observers for each published
// inject.
type InjectMessage struct {
	Event                string   `json:"event"`
	SessionID            string   `json:"session_id"`
	InjectID             string   `json:"inject_id"`
	Origin               string   `json:"origin"`
	Scope                string   `json:"scope"`
	TargetRoles          []string `json:"target_roles,omitempty"`
	TargetTeams          []string `json:"target_teams,omitempty"`
	Severity             string   `json:"severity"`
	Type                 string   `json:"type"`
	Title                string   `json:"title"`
	Content              string   `json:"content"`
	RequiresResponse     bool     `json:"requires_response"`
	RequiresCoordination bool     `json:"requires_coordination"`
}

type subscriber struct {
	team  string
	roles map[string]struct{}
	send  chan InjectMessage
}

// Hub tracks observer connections per session and fans committed injects out
// to them. Delivery is best effort: a slow observer's frames are dropped
// rather than blocking publication.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*subscriber]struct{})}
}

// ServeSession upgrades the request to a WebSocket and streams the session's
// published injects until the client disconnects. The optional team and
// roles query parameters scope what the observer sees: team_specific and
// role_specific injects are only delivered to matching observers.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed for session %s: %v", sessionID, err)
		return
	}

	sub := &subscriber{
		team:  strings.TrimSpace(r.URL.Query().Get("team")),
		roles: make(map[string]struct{}),
		send:  make(chan InjectMessage, sendBufferSize),
	}
	for role := range strings.SplitSeq(r.URL.Query().Get("roles"), ",") {
		role = strings.TrimSpace(role)
		if role != "" {
			sub.roles[role] = struct{}{}
		}
	}

	h.add(sessionID, sub)
	log.Printf("observer connected to session %s (team=%q roles=%d)", sessionID, sub.team, len(sub.roles))

	go h.writeLoop(conn, sub)
	h.readLoop(conn)

	h.remove(sessionID, sub)
	close(sub.send)
	log.Printf("observer disconnected from session %s", sessionID)
}

// BroadcastInject fans a committed inject out to the session's observers.
func (h *Hub) BroadcastInject(sessionID string, inject domain.Inject) {
	message := InjectMessage{
		Event:                "inject_published",
		SessionID:            sessionID,
		InjectID:             inject.ID,
		Origin:               string(inject.Origin),
		Scope:                string(inject.Scope),
		TargetRoles:          inject.TargetRoles,
		TargetTeams:          inject.TargetTeams,
		Severity:             string(inject.Severity),
		Type:                 inject.Type,
		Title:                inject.Title,
		Content:              inject.Content,
		RequiresResponse:     inject.RequiresResponse,
		RequiresCoordination: inject.RequiresCoordination,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.sessions[sessionID] {
		if !Visible(inject, sub.team, sub.roles) {
			continue
		}
		select {
		case sub.send <- message:
		default:
			// Observer is not keeping up; drop the frame.
		}
	}
}

// ObserverCount reports how many observers a session currently has.
func (h *Hub) ObserverCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// Visible reports whether an inject should be delivered to an observer with
// the given team and role set. Universal injects are always visible. An
// observer that declares no team or roles sees everything; that is the
// facilitator view.
func Visible(inject domain.Inject, team string, roles map[string]struct{}) bool {
	if team == "" && len(roles) == 0 {
		return true
	}
	switch inject.Scope {
	case domain.ScopeTeamSpecific:
		if team == "" {
			return true
		}
		for _, target := range inject.TargetTeams {
			if strings.EqualFold(target, team) {
				return true
			}
		}
		return false
	case domain.ScopeRoleSpecific:
		if len(roles) == 0 {
			return true
		}
		for _, target := range inject.TargetRoles {
			if _, ok := roles[target]; ok {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func (h *Hub) add(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.sessions[sessionID] = subs
	}
	subs[sub] = struct{}{}
}

func (h *Hub) remove(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.sessions[sessionID]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.sessions, sessionID)
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber) {
	defer conn.Close()
	for message := range sub.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(message); err != nil {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// readLoop drains incoming frames so close handshakes are processed. The
// engine is a pure producer; observer frames carry no meaning.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
