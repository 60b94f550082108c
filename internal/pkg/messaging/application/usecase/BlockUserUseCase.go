package usecase

import (
	"context"
	"fmt"
	"time"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
)

// BlockUserInput carries a block or unblock request.
type BlockUserInput struct {
	BlockerID string
	BlockedID string
}

// BlockUserUseCase maintains the directed block edges the relay consults
// before every fan-out. A block taking effect mid-conversation suppresses
// delivery from the next message on.
type BlockUserUseCase struct {
	Repo repository.RoomRepository
}

func NewBlockUserUseCase(repo repository.RoomRepository) *BlockUserUseCase {
	return &BlockUserUseCase{Repo: repo}
}

func (uc *BlockUserUseCase) Block(ctx context.Context, in BlockUserInput) error {
	if err := validateBlockInput(in); err != nil {
		return err
	}
	err := uc.Repo.AddBlock(ctx, messaging.Block{
		BlockerID: in.BlockerID,
		BlockedID: in.BlockedID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (uc *BlockUserUseCase) Unblock(ctx context.Context, in BlockUserInput) error {
	if err := validateBlockInput(in); err != nil {
		return err
	}
	if err := uc.Repo.RemoveBlock(ctx, in.BlockerID, in.BlockedID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func validateBlockInput(in BlockUserInput) error {
	if in.BlockerID == "" || in.BlockedID == "" {
		return fmt.Errorf("blocker_id and blocked_id are required")
	}
	if in.BlockerID == in.BlockedID {
		return fmt.Errorf("a user cannot block themselves")
	}
	return nil
}
