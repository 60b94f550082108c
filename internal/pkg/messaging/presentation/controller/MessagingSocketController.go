package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/realtime"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/relay"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/usecase"
	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/wire"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// MessagingSocketController handles the websocket endpoint for realtime
// messaging traffic.
type MessagingSocketController struct {
	registry        *realtime.Registry
	relay           *relay.Relay
	joinRoomUC      *usecase.JoinRoomUseCase
	inflightTimeout time.Duration
}

func NewMessagingSocketController(repo repository.RoomRepository, registry *realtime.Registry, rly *relay.Relay) *MessagingSocketController {
	return &MessagingSocketController{
		registry:        registry,
		relay:           rly,
		joinRoomUC:      usecase.NewJoinRoomUseCase(repo),
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until the
// client disconnects. Identity arrives from the auth middleware; each upgrade
// becomes one session in the registry, and a user may hold several at once.
func (ctl *MessagingSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authenticatedUser(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.registry.Attach(conn)
		defer func() {
			ctl.registry.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.reply(conn, wire.Ack{Type: wire.FrameConnected})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", err.Error(), "")
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var frame wire.Inbound
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload", "")
				continue
			}

			switch frame.Type {
			case wire.FrameJoin:
				ctl.handleJoin(c, conn, frame)
			case wire.FrameLeave:
				ctl.handleLeave(conn, frame)
			case wire.FrameMessage:
				ctl.handleMessage(c, conn, userID, frame)
			case wire.FrameMarkRead:
				ctl.handleMarkRead(c, conn, userID, frame)
			case wire.FramePing:
				ctl.reply(conn, wire.Ack{Type: wire.FramePong})
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type", "")
			}
		}
	}
}

func (ctl *MessagingSocketController) handleJoin(c *gin.Context, conn *realtime.Connection, frame wire.Inbound) {
	if frame.RoomID == "" {
		ctl.replyError(conn, "bad_request", "room_id is required", "")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	err := ctl.joinRoomUC.Execute(ctx, usecase.JoinRoomInput{
		RoomID: frame.RoomID,
		UserID: conn.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err, "")
		return
	}

	ctl.registry.Join(frame.RoomID, conn)
	ctl.reply(conn, wire.Ack{Type: wire.FrameJoined, RoomID: frame.RoomID})
}

func (ctl *MessagingSocketController) handleLeave(conn *realtime.Connection, frame wire.Inbound) {
	if frame.RoomID == "" {
		ctl.replyError(conn, "bad_request", "room_id is required", "")
		return
	}
	ctl.registry.Leave(frame.RoomID, conn)
	ctl.reply(conn, wire.Ack{Type: wire.FrameLeft, RoomID: frame.RoomID})
}

func (ctl *MessagingSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, userID string, frame wire.Inbound) {
	if frame.RoomID == "" {
		ctl.replyError(conn, "bad_request", "room_id is required", frame.CorrelationID)
		return
	}
	if frame.CorrelationID == "" {
		ctl.replyError(conn, "bad_request", "correlation_id is required", "")
		return
	}

	msgType := messaging.MessageTypeText
	if frame.MsgType != nil {
		msgType = messaging.MessageType(*frame.MsgType)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	receipt, err := ctl.relay.Submit(ctx, relay.SubmitInput{
		CorrelationID: frame.CorrelationID,
		RoomID:        frame.RoomID,
		SenderID:      userID,
		Content:       frame.Content,
		MsgType:       msgType,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err, frame.CorrelationID)
		return
	}

	// The message itself reaches this session through the fan-out like any
	// other participant; the ack closes the loop for the outbound queue.
	ctl.reply(conn, wire.Ack{
		Type:          wire.FrameAck,
		RoomID:        frame.RoomID,
		CorrelationID: receipt.CorrelationID,
		MessageID:     receipt.MessageID,
	})
}

func (ctl *MessagingSocketController) handleMarkRead(c *gin.Context, conn *realtime.Connection, userID string, frame wire.Inbound) {
	if len(frame.MessageIDs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if err := ctl.relay.MarkRead(ctx, userID, frame.MessageIDs); err != nil {
		ctl.handleUseCaseError(conn, err, "")
	}
}

func (ctl *MessagingSocketController) handleUseCaseError(conn *realtime.Connection, err error, correlationID string) {
	var code string
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		code = "internal_error"
	case errors.Is(err, usecase.ErrRoomNotFound):
		code = "not_found"
	case errors.Is(err, messaging.ErrNotParticipant),
		errors.Is(err, messaging.ErrUserBlocked),
		errors.Is(err, messaging.ErrRoomArchived):
		code = "forbidden"
	default:
		code = "bad_request"
	}

	if correlationID != "" {
		// Message sends report failure against their correlation id so the
		// outbound queue can mark the right entry.
		frameType := wire.FrameMessageFailed
		if code == "internal_error" {
			// Transient: the queue retries with the same correlation id.
			ctl.send(conn, wire.Error{Type: frameType, Code: code, Error: "unexpected persistence error", CorrelationID: correlationID})
			return
		}
		ctl.send(conn, wire.Error{Type: frameType, Code: code, Error: err.Error(), CorrelationID: correlationID})
		return
	}

	msg := err.Error()
	if code == "internal_error" {
		msg = "unexpected persistence error"
	}
	ctl.replyError(conn, code, msg, "")
}

func (ctl *MessagingSocketController) replyError(conn *realtime.Connection, code string, message string, correlationID string) {
	ctl.send(conn, wire.Error{Type: wire.FrameError, Code: code, Error: message, CorrelationID: correlationID})
}

func (ctl *MessagingSocketController) reply(conn *realtime.Connection, frame wire.Ack) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *MessagingSocketController) send(conn *realtime.Connection, v any) {
	if payload, err := json.Marshal(v); err == nil {
		_ = conn.Send(payload)
	}
}

// authenticatedUser extracts the verified identity set by the auth
// collaborator. The X-User-ID header is what the gateway injects; the query
// parameter keeps local tooling usable.
func authenticatedUser(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}
