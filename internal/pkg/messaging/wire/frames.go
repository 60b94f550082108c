// Package wire defines the JSON frames exchanged between clients and the
// relay over the websocket transport. Both the socket controller and the Go
// client encode/decode these types, so the contract lives in one place.
package wire

import "time"

// Frame type identifiers, client -> server.
const (
	FrameJoin     = "join"
	FrameLeave    = "leave"
	FrameMessage  = "message"
	FrameMarkRead = "mark_read"
	FramePing     = "ping"
)

// Frame type identifiers, server -> client.
const (
	FrameConnected     = "connected"
	FrameJoined        = "joined"
	FrameLeft          = "left"
	FrameAck           = "ack"
	FrameDelivered     = "message"
	FrameMessageFailed = "message_failed"
	FrameMessagesRead  = "messages_read"
	FramePong          = "pong"
	FrameError         = "error"
)

// Inbound is the envelope for client-initiated frames.
type Inbound struct {
	Type          string   `json:"type"`
	RoomID        string   `json:"room_id,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	Content       string   `json:"content,omitempty"`
	MsgType       *int16   `json:"msg_type,omitempty"`
	MessageIDs    []string `json:"message_ids,omitempty"`
}

// Ack confirms a client request: connection handshake, join/leave, or a
// persisted message. For message acks it carries the correlation id to
// server message id mapping the outbound queue reconciles on.
type Ack struct {
	Type          string `json:"type"`
	RoomID        string `json:"room_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
}

// Error reports a terminal failure for a client request.
type Error struct {
	Type          string `json:"type"`
	Code          string `json:"code"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Message is a persisted message pushed to room participants.
type Message struct {
	Type    string  `json:"type"`
	RoomID  string  `json:"room_id"`
	Payload Payload `json:"message"`
}

// Payload is the wire shape of one persisted message.
type Payload struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	SenderID      string    `json:"sender_id"`
	Content       string    `json:"content"`
	MsgType       int16     `json:"msg_type"`
	CreatedAt     time.Time `json:"created_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// MessagesRead propagates read receipts to the other participants.
type MessagesRead struct {
	Type       string   `json:"type"`
	RoomID     string   `json:"room_id,omitempty"`
	UserID     string   `json:"user_id"`
	MessageIDs []string `json:"message_ids"`
}
