package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	qport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/queue/port"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
)

// PruneRoomTaskType is the queue task name for trimming a room back to its
// retention cap. The relay enqueues it after every successful persist so
// eviction never runs on the fan-out path.
const PruneRoomTaskType = "messaging:prune_room"

// PruneRoomTaskPayload is the JSON payload transported via the queue.
type PruneRoomTaskPayload struct {
	RoomID string `json:"roomId"`
	Keep   int    `json:"keep"`
}

// RegisterPruneRoomTask binds the retention handler to the provided server.
// Oldest messages beyond the cap are removed first.
func RegisterPruneRoomTask(srv qport.Server, repo repository.RoomRepository, log *slog.Logger) {
	srv.Register(PruneRoomTaskType, func(ctx context.Context, t qport.Task) error {
		var p PruneRoomTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		removed, err := repo.PruneRoom(ctx, p.RoomID, p.Keep)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Info("pruned room history", "room_id", p.RoomID, "removed", removed, "keep", p.Keep)
		}
		return nil
	})
}
