package realtime

import (
	"sync"
)

// Session is one live transport attachment for a user. *Connection is the
// production implementation; tests substitute in-memory fakes.
type Session interface {
	SessionID() string
	User() string
	Send(payload []byte) error
	Close(code int, reason string)
}

// SessionID returns the session identifier of the connection.
func (c *Connection) SessionID() string { return c.ID }

// User returns the authenticated user the connection belongs to.
func (c *Connection) User() string { return c.UserID }

// Registry tracks which authenticated user is attached to which live session
// and which sessions are subscribed to which rooms. A user may hold several
// concurrent sessions (multi-device). Fan-out to a room or to a user touches
// only the sessions involved, never the whole connection table.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]Session             // sessionID -> session
	userSessions map[string]map[string]Session  // userID -> sessionID -> session
	rooms        map[string]map[string]Session  // roomID -> sessionID -> session
	sessionRooms map[string]map[string]struct{} // sessionID -> set of roomIDs
}

// NewRegistry constructs an initialized Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]Session),
		userSessions: make(map[string]map[string]Session),
		rooms:        make(map[string]map[string]Session),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers a session for its user. Existing sessions of the same user
// are kept: every device keeps its own view of the conversation.
func (r *Registry) Attach(s Session) {
	r.mu.Lock()
	r.sessions[s.SessionID()] = s
	userSet := r.userSessions[s.User()]
	if userSet == nil {
		userSet = make(map[string]Session)
		r.userSessions[s.User()] = userSet
	}
	userSet[s.SessionID()] = s
	r.sessionRooms[s.SessionID()] = make(map[string]struct{})
	r.mu.Unlock()

	if conn, ok := s.(*Connection); ok {
		conn.Start()
	}
}

// Detach removes a session and all of its room subscriptions.
func (r *Registry) Detach(s Session) {
	r.mu.Lock()
	r.detachLocked(s.SessionID())
	r.mu.Unlock()
}

// Join subscribes the session to the room.
func (r *Registry) Join(roomID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.SessionID()]; !ok {
		return
	}

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]Session)
		r.rooms[roomID] = room
	}
	room[s.SessionID()] = s

	memberships := r.sessionRooms[s.SessionID()]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.sessionRooms[s.SessionID()] = memberships
	}
	memberships[roomID] = struct{}{}
}

// Leave unsubscribes the session from the room.
func (r *Registry) Leave(roomID string, s Session) {
	r.mu.Lock()
	r.leaveLocked(roomID, s.SessionID())
	r.mu.Unlock()
}

// BroadcastRoom writes payload to every session subscribed to the room,
// skipping users present in the exclude set. The sender's own other sessions
// are regular recipients, which keeps multi-device views consistent.
func (r *Registry) BroadcastRoom(roomID string, payload []byte, exclude map[string]struct{}) int {
	r.mu.RLock()
	room := r.rooms[roomID]
	targets := make([]Session, 0, len(room))
	for _, s := range room {
		if _, skip := exclude[s.User()]; skip {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// NotifyUser delivers payload to every live session of the given user.
func (r *Registry) NotifyUser(userID string, payload []byte) int {
	r.mu.RLock()
	userSet := r.userSessions[userID]
	targets := make([]Session, 0, len(userSet))
	for _, s := range userSet {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// HasSessions reports whether the user has at least one live session.
// The relay uses it to decide which participants need offline notification.
func (r *Registry) HasSessions(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userSessions[userID]) > 0
}

// RoomSessionCount returns the number of sessions subscribed to the room.
func (r *Registry) RoomSessionCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// SessionCount returns the number of tracked sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close terminates all tracked sessions and clears registry state.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]Session)
	r.userSessions = make(map[string]map[string]Session)
	r.rooms = make(map[string]map[string]Session)
	r.sessionRooms = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close(1001, "registry shutdown")
	}
}

func (r *Registry) detachLocked(sessionID string) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)

	if userSet, ok := r.userSessions[s.User()]; ok {
		delete(userSet, sessionID)
		if len(userSet) == 0 {
			delete(r.userSessions, s.User())
		}
	}

	for roomID := range r.sessionRooms[sessionID] {
		r.leaveLocked(roomID, sessionID)
	}
	delete(r.sessionRooms, sessionID)
}

func (r *Registry) leaveLocked(roomID string, sessionID string) {
	if sessionID == "" {
		return
	}
	room := r.rooms[roomID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
	if memberships, ok := r.sessionRooms[sessionID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(r.sessionRooms, sessionID)
		}
	}
}
