package usecase

import (
	"context"
	"fmt"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
)

// JoinRoomInput validates a request to attach a user session to a room.
type JoinRoomInput struct {
	RoomID string
	UserID string
}

// JoinRoomUseCase ensures the user belongs to the room before the session
// subscribes to its realtime events.
type JoinRoomUseCase struct {
	Repo repository.RoomRepository
}

func NewJoinRoomUseCase(repo repository.RoomRepository) *JoinRoomUseCase {
	return &JoinRoomUseCase{Repo: repo}
}

func (uc *JoinRoomUseCase) Execute(ctx context.Context, in JoinRoomInput) error {
	if in.RoomID == "" || in.UserID == "" {
		return fmt.Errorf("room_id and user_id are required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.RoomID, in.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return messaging.ErrNotParticipant
	}
	return nil
}
