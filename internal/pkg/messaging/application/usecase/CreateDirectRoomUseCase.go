package usecase

import (
	"context"
	"fmt"
	"time"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
)

// CreateDirectRoomInput carries the two users of a direct conversation.
type CreateDirectRoomInput struct {
	UserA string
	UserB string
}

// CreateDirectRoomUseCase implements get-or-create for direct user-pair rooms.
// The unordered pair key makes the lookup deterministic, so the same two users
// always land in the same room no matter who initiates.
type CreateDirectRoomUseCase struct {
	Repo repository.RoomRepository
}

func NewCreateDirectRoomUseCase(repo repository.RoomRepository) *CreateDirectRoomUseCase {
	return &CreateDirectRoomUseCase{Repo: repo}
}

func (uc *CreateDirectRoomUseCase) Execute(ctx context.Context, in CreateDirectRoomInput) (*messaging.Room, error) {
	if in.UserA == "" || in.UserB == "" {
		return nil, fmt.Errorf("both user ids are required")
	}
	if in.UserA == in.UserB {
		return nil, messaging.ErrSelfChat
	}

	pairKey := messaging.DirectPairKey(in.UserA, in.UserB)
	room, err := uc.Repo.GetRoomByPairKey(ctx, pairKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if room != nil {
		return room, nil
	}

	now := time.Now().UTC()
	id, err := uc.Repo.CreateRoom(ctx, messaging.Room{
		PairKey:   &pairKey,
		Status:    messaging.RoomStatusActive,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	for _, userID := range []string{in.UserA, in.UserB} {
		p := messaging.Participant{
			RoomID:   id,
			UserID:   userID,
			Role:     messaging.RoleParticipant,
			JoinedAt: now,
		}
		if err := uc.Repo.AddParticipant(ctx, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	return &messaging.Room{
		ID:             id,
		PairKey:        &pairKey,
		Status:         messaging.RoomStatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}, nil
}
