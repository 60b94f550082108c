package usecase

import (
	"context"
	"errors"
	"fmt"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/jackc/pgx/v5"
)

// ArchiveRoomInput identifies the room to archive and who asked.
type ArchiveRoomInput struct {
	RoomID string
	UserID string
}

// ArchiveRoomUseCase soft-archives a room. Archived rooms reject new messages
// but keep their history; rooms are never hard-deleted while messages
// reference them.
type ArchiveRoomUseCase struct {
	Repo repository.RoomRepository
}

func NewArchiveRoomUseCase(repo repository.RoomRepository) *ArchiveRoomUseCase {
	return &ArchiveRoomUseCase{Repo: repo}
}

func (uc *ArchiveRoomUseCase) Execute(ctx context.Context, in ArchiveRoomInput) error {
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

	if err := uc.Repo.ArchiveRoom(ctx, in.RoomID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
