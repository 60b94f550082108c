package usecase

import (
	"context"
	"fmt"
	"time"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
)

// MaxHistoryPageSize bounds one page of message history.
const MaxHistoryPageSize = 100

// GetHistoryInput carries parameters to fetch messages of a room.
// Before acts as the pagination cursor: pass the oldest CreatedAt of the
// previous page to fetch the next one.
type GetHistoryInput struct {
	RoomID string
	UserID string
	Limit  int
	Before *time.Time
}

// GetHistoryUseCase fetches a page of room history for a participant.
// The store returns newest-first; the page is reversed so callers render
// messages in chronological order.
type GetHistoryUseCase struct {
	Repo repository.RoomRepository
}

func NewGetHistoryUseCase(repo repository.RoomRepository) *GetHistoryUseCase {
	return &GetHistoryUseCase{Repo: repo}
}

func (uc *GetHistoryUseCase) Execute(ctx context.Context, in GetHistoryInput) ([]messaging.Message, error) {
	if in.RoomID == "" || in.UserID == "" {
		return nil, fmt.Errorf("room_id and user_id are required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.RoomID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, messaging.ErrNotParticipant
	}

	limit := in.Limit
	if limit <= 0 || limit > MaxHistoryPageSize {
		limit = MaxHistoryPageSize
	}

	msgs, err := uc.Repo.GetMessagesByRoom(ctx, in.RoomID, limit, in.Before)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
