package repository

import (
	"context"
	"time"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
)

// RoomRepository defines persistence operations for the messaging core.
// All message writes flow through SaveMessage so the correlation-id
// idempotency guarantee is enforced in one place.
type RoomRepository interface {
	// Rooms
	GetRoomByItem(ctx context.Context, itemID string) (*messaging.Room, error)
	GetRoomByPairKey(ctx context.Context, pairKey string) (*messaging.Room, error)
	GetRoom(ctx context.Context, roomID string) (*messaging.Room, error)
	CreateRoom(ctx context.Context, r messaging.Room) (string, error)
	ArchiveRoom(ctx context.Context, roomID string) error
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
	ListRoomsByUser(ctx context.Context, userID string) ([]messaging.Room, error)

	// Participants
	AddParticipant(ctx context.Context, p messaging.Participant) error
	ListParticipants(ctx context.Context, roomID string) ([]messaging.Participant, error)
	IsParticipant(ctx context.Context, roomID string, userID string) (bool, error)

	// Messages
	// SaveMessage persists m unless a message with the same
	// (room, sender, correlation id) already exists; in that case it returns
	// the existing message id with created=false. createdAt is the stored
	// timestamp, so a duplicate reports the original persist time rather
	// than the retry's.
	SaveMessage(ctx context.Context, m messaging.Message) (id string, createdAt time.Time, created bool, err error)
	GetMessagesByRoom(ctx context.Context, roomID string, limit int, before *time.Time) ([]messaging.Message, error)
	CountMessages(ctx context.Context, roomID string) (int, error)
	// PruneRoom deletes the oldest messages beyond keep and returns how many
	// were removed.
	PruneRoom(ctx context.Context, roomID string, keep int) (int, error)

	// Read receipts
	// MarkRead inserts (userID, at) into the read-by set of each message the
	// user may see and returns the newly marked ids grouped by room.
	// Re-marking an already-read message is a no-op.
	MarkRead(ctx context.Context, userID string, messageIDs []string, at time.Time) (map[string][]string, error)
	ListReadReceipts(ctx context.Context, messageID string) ([]messaging.ReadReceipt, error)

	// Blocks
	AddBlock(ctx context.Context, b messaging.Block) error
	RemoveBlock(ctx context.Context, blockerID, blockedID string) error
	// BlocksAmong returns every directed block edge between the given users.
	BlocksAmong(ctx context.Context, userIDs []string) (messaging.BlockSet, error)
}
