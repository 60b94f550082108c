package usecase

import (
	"context"
	"fmt"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
)

// ListRoomsInput wraps the user whose rooms are listed.
type ListRoomsInput struct {
	UserID string
}

// ListRoomsUseCase returns the rooms a user participates in, most recently
// active first.
type ListRoomsUseCase struct {
	Repo repository.RoomRepository
}

func NewListRoomsUseCase(repo repository.RoomRepository) *ListRoomsUseCase {
	return &ListRoomsUseCase{Repo: repo}
}

func (uc *ListRoomsUseCase) Execute(ctx context.Context, in ListRoomsInput) ([]messaging.Room, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	rooms, err := uc.Repo.ListRoomsByUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return rooms, nil
}
