package messaging

import (
	"errors"
	"time"
)

// Domain-level errors for messaging behaviors
var (
	ErrInvalidRoom          = errors.New("messaging: room/message mismatch")
	ErrNotParticipant       = errors.New("messaging: sender is not a participant in the room")
	ErrUserBlocked          = errors.New("messaging: message not allowed because one of the parties is blocked")
	ErrRoomArchived         = errors.New("messaging: room is archived")
	ErrSelfChat             = errors.New("messaging: a user cannot open a room with themselves")
	ErrEmptyMessage         = errors.New("messaging: empty message content")
	ErrContentTooLong       = errors.New("messaging: message content exceeds the maximum length")
	ErrMissingCorrelationID = errors.New("messaging: correlation id is required")
)

// RoomChat is the domain aggregate for a room and its invariants.
//
// Notes:
//   - The application layer hydrates it with the room, its participants and the
//     block edges between them before invoking its behaviors.
//   - Persistence is handled by repositories outside the domain; this type only
//     enforces rules and shapes intent.
type RoomChat struct {
	Room         Room
	Participants map[string]Participant // keyed by userID
	Blocks       BlockSet
}

// HasParticipant tells whether userID is part of this room.
func (c *RoomChat) HasParticipant(userID string) bool {
	if c == nil || c.Participants == nil {
		return false
	}
	_, ok := c.Participants[userID]
	return ok
}

// OtherParticipantIDs returns every participant except userID.
func (c *RoomChat) OtherParticipantIDs(userID string) []string {
	if c == nil {
		return nil
	}
	others := make([]string, 0, len(c.Participants))
	for id := range c.Participants {
		if id != userID {
			others = append(others, id)
		}
	}
	return others
}

// ParticipantIDs returns every participant of the room.
func (c *RoomChat) ParticipantIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Participants))
	for id := range c.Participants {
		ids = append(ids, id)
	}
	return ids
}

// Submit applies domain rules and returns a validated message ready to persist.
//
// Validations:
// - Room/message identity must match and the room must be active
// - Sender must be a participant
// - No blocks between sender and any other participant (bidirectional check)
// - Content rules enforced by NewMessage
//
// On success the room's last-activity watermark is advanced to the message
// timestamp. Idempotent replay by correlation id is handled by the repository,
// not here: the aggregate validates intent, the store deduplicates it.
func (c *RoomChat) Submit(m Message, now time.Time) (Message, error) {
	if m.RoomID == "" || c.Room.ID == "" || m.RoomID != c.Room.ID {
		return Message{}, ErrInvalidRoom
	}
	if c.Room.Status == RoomStatusArchived {
		return Message{}, ErrRoomArchived
	}
	if !c.HasParticipant(m.SenderID) {
		return Message{}, ErrNotParticipant
	}
	for _, other := range c.OtherParticipantIDs(m.SenderID) {
		if c.Blocks.Blocked(m.SenderID, other) {
			return Message{}, ErrUserBlocked
		}
	}

	if m.CreatedAt.IsZero() {
		if now.IsZero() {
			now = time.Now().UTC()
		}
		m.CreatedAt = now.UTC()
	}

	validated, err := NewMessage(m)
	if err != nil {
		return Message{}, err
	}

	if validated.CreatedAt.After(c.Room.LastActivityAt) {
		c.Room.LastActivityAt = validated.CreatedAt
	}

	return *validated, nil
}
