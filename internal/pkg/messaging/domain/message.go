package messaging

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType represents the kind of message content.
// 0=text, 1=system
type MessageType int16

const (
	MessageTypeText   MessageType = 0
	MessageTypeSystem MessageType = 1
)

// MaxContentLength bounds message content, counted in runes.
const MaxContentLength = 4000

// Message is an immutable log entry in a room. Once persisted its room,
// sender and content never change; only the read-by set grows.
type Message struct {
	ID            string      `db:"id"`
	RoomID        string      `db:"room_id"`
	SenderID      string      `db:"sender_id"`
	Content       string      `db:"content"`
	MsgType       MessageType `db:"msg_type"`
	CreatedAt     time.Time   `db:"created_at"`
	CorrelationID string      `db:"correlation_id"`
}

// ReadReceipt is one entry of a message's read-by set.
type ReadReceipt struct {
	MessageID string    `db:"message_id"`
	UserID    string    `db:"user_id"`
	ReadAt    time.Time `db:"read_at"`
}

// NewMessage validates and normalizes a message candidate.
// Content is trimmed and must be non-empty and within MaxContentLength.
func NewMessage(m Message) (*Message, error) {
	if m.RoomID == "" || m.SenderID == "" {
		return nil, ErrInvalidRoom
	}
	if m.CorrelationID == "" {
		return nil, ErrMissingCorrelationID
	}

	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(m.Content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return &m, nil
}
