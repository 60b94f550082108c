package messaging

import (
	"sort"
	"strings"
	"time"
)

// RoomStatus tracks the lifecycle of a room.
// Rooms are never hard-deleted while messages reference them; archiving is the
// only terminal state.
type RoomStatus int16

const (
	RoomStatusActive   RoomStatus = 0
	RoomStatusArchived RoomStatus = 1
)

// Room is a conversation scoped to a single item or to a user pair.
type Room struct {
	ID             string     `db:"id"`
	ItemID         *string    `db:"item_id"`
	PairKey        *string    `db:"pair_key"`
	Status         RoomStatus `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	LastActivityAt time.Time  `db:"last_activity_at"`
}

// DirectPairKey builds the deterministic lookup key for a direct room between
// two users. The key is order-independent so the same pair always resolves to
// the same room.
func DirectPairKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
