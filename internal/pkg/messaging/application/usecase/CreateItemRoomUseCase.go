package usecase

import (
	"context"
	"fmt"
	"time"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
)

// CreateItemRoomInput carries the data to open (or rejoin) the room of an item.
type CreateItemRoomInput struct {
	ItemID           string
	RequestingUserID string
}

// CreateItemRoomUseCase implements get-or-create for item rooms.
//
// Policy: the room is seeded with the item's reporter, whose role is derived
// from the item's lost/found status; the requesting user joins with the
// complementary role. Opening the room of your own item without a counterpart
// is rejected as self-chat.
type CreateItemRoomUseCase struct {
	Repo  repository.RoomRepository
	Items repository.ItemDirectory
}

func NewCreateItemRoomUseCase(repo repository.RoomRepository, items repository.ItemDirectory) *CreateItemRoomUseCase {
	return &CreateItemRoomUseCase{Repo: repo, Items: items}
}

// Execute returns the item's room, creating it on first contact.
func (uc *CreateItemRoomUseCase) Execute(ctx context.Context, in CreateItemRoomInput) (*messaging.Room, error) {
	if in.ItemID == "" || in.RequestingUserID == "" {
		return nil, fmt.Errorf("item_id and user_id are required")
	}

	room, err := uc.Repo.GetRoomByItem(ctx, in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if room == nil {
		return uc.create(ctx, in)
	}

	participants, err := uc.Repo.ListParticipants(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, p := range participants {
		if p.UserID == in.RequestingUserID {
			return room, nil
		}
	}

	role := messaging.RoleParticipant
	if len(participants) > 0 {
		role = participants[0].Role.Complement()
	}
	err = uc.Repo.AddParticipant(ctx, messaging.Participant{
		RoomID:   room.ID,
		UserID:   in.RequestingUserID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return room, nil
}

func (uc *CreateItemRoomUseCase) create(ctx context.Context, in CreateItemRoomInput) (*messaging.Room, error) {
	item, err := uc.Items.GetItem(ctx, in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.ReporterID == in.RequestingUserID {
		return nil, messaging.ErrSelfChat
	}

	reporterRole := messaging.RoleOwner
	if item.Status == repository.ItemStatusFound {
		reporterRole = messaging.RoleFinder
	}

	now := time.Now().UTC()
	itemID := in.ItemID
	id, err := uc.Repo.CreateRoom(ctx, messaging.Room{
		ItemID:    &itemID,
		Status:    messaging.RoomStatusActive,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	seed := []messaging.Participant{
		{RoomID: id, UserID: item.ReporterID, Role: reporterRole, JoinedAt: now},
		{RoomID: id, UserID: in.RequestingUserID, Role: reporterRole.Complement(), JoinedAt: now},
	}
	for _, p := range seed {
		if err := uc.Repo.AddParticipant(ctx, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	return &messaging.Room{
		ID:             id,
		ItemID:         &itemID,
		Status:         messaging.RoomStatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}, nil
}
