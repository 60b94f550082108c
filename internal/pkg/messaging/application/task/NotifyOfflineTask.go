package task

import (
	"context"
	"encoding/json"
	"log/slog"

	qport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/queue/port"
)

// NotifyOfflineTaskType is the queue task name for notifying participants who
// had no live session when a message was persisted. Actual push/email dispatch
// belongs to the external notification sink; this handler only hands the event
// over.
const NotifyOfflineTaskType = "messaging:notify_offline"

// NotifyOfflineTaskPayload is the JSON payload transported via the queue.
type NotifyOfflineTaskPayload struct {
	RoomID     string   `json:"roomId"`
	MessageID  string   `json:"messageId"`
	SenderID   string   `json:"senderId"`
	Recipients []string `json:"recipients"`
}

// NotificationSink forwards a message event to the external notification
// service (push, email). Implementations must be safe to call repeatedly for
// the same message id.
type NotificationSink interface {
	NotifyNewMessage(ctx context.Context, roomID, messageID, senderID string, recipients []string) error
}

// RegisterNotifyOfflineTask binds the offline-notification handler to the
// provided server. A nil sink downgrades the task to a log line, which keeps
// local setups working without the notification service.
func RegisterNotifyOfflineTask(srv qport.Server, sink NotificationSink, log *slog.Logger) {
	srv.Register(NotifyOfflineTaskType, func(ctx context.Context, t qport.Task) error {
		var p NotifyOfflineTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return err
		}
		if len(p.Recipients) == 0 {
			return nil
		}
		if sink == nil {
			log.Debug("no notification sink configured, dropping event",
				"room_id", p.RoomID, "message_id", p.MessageID, "recipients", len(p.Recipients))
			return nil
		}
		return sink.NotifyNewMessage(ctx, p.RoomID, p.MessageID, p.SenderID, p.Recipients)
	})
}
