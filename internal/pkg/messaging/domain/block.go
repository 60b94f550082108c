package messaging

import "time"

// Block represents a directed blocker -> blocked edge. A block in either
// direction between two users suppresses message delivery between them.
type Block struct {
	CreatedAt time.Time `db:"created_at"`
	BlockerID string    `db:"blocker_id"`
	BlockedID string    `db:"blocked_id"`
}

// BlockSet is the set of directed block edges relevant to one room,
// hydrated by the application layer before authorization.
type BlockSet map[string]map[string]struct{}

// Add records a directed edge.
func (s BlockSet) Add(blockerID, blockedID string) {
	if s[blockerID] == nil {
		s[blockerID] = make(map[string]struct{})
	}
	s[blockerID][blockedID] = struct{}{}
}

// Blocked reports whether a block exists in either direction between a and b.
func (s BlockSet) Blocked(a, b string) bool {
	if edges, ok := s[a]; ok {
		if _, ok := edges[b]; ok {
			return true
		}
	}
	if edges, ok := s[b]; ok {
		if _, ok := edges[a]; ok {
			return true
		}
	}
	return false
}
