package messaging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestChat() *RoomChat {
	return &RoomChat{
		Room: Room{ID: "room-1", Status: RoomStatusActive},
		Participants: map[string]Participant{
			"alice": {RoomID: "room-1", UserID: "alice", Role: RoleOwner},
			"bob":   {RoomID: "room-1", UserID: "bob", Role: RoleFinder},
		},
		Blocks: BlockSet{},
	}
}

func TestRoomChat_Submit_ValidMessage(t *testing.T) {
	chat := newTestChat()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg, err := chat.Submit(Message{
		RoomID:        "room-1",
		SenderID:      "bob",
		Content:       "  found your item near the library  ",
		CorrelationID: "c1",
	}, now)

	require.NoError(t, err)
	require.Equal(t, "found your item near the library", msg.Content)
	require.Equal(t, now, msg.CreatedAt)
	require.Equal(t, now, chat.Room.LastActivityAt)
}

func TestRoomChat_Submit_RejectsNonParticipant(t *testing.T) {
	chat := newTestChat()

	_, err := chat.Submit(Message{
		RoomID:        "room-1",
		SenderID:      "mallory",
		Content:       "hello",
		CorrelationID: "c1",
	}, time.Now())

	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestRoomChat_Submit_RejectsBlockedEitherDirection(t *testing.T) {
	for _, edge := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		chat := newTestChat()
		chat.Blocks.Add(edge[0], edge[1])

		_, err := chat.Submit(Message{
			RoomID:        "room-1",
			SenderID:      "bob",
			Content:       "hello",
			CorrelationID: "c1",
		}, time.Now())

		require.ErrorIs(t, err, ErrUserBlocked)
	}
}

func TestRoomChat_Submit_RejectsArchivedRoom(t *testing.T) {
	chat := newTestChat()
	chat.Room.Status = RoomStatusArchived

	_, err := chat.Submit(Message{
		RoomID:        "room-1",
		SenderID:      "alice",
		Content:       "hello",
		CorrelationID: "c1",
	}, time.Now())

	require.ErrorIs(t, err, ErrRoomArchived)
}

func TestRoomChat_Submit_ContentRules(t *testing.T) {
	chat := newTestChat()

	_, err := chat.Submit(Message{
		RoomID:        "room-1",
		SenderID:      "alice",
		Content:       "   ",
		CorrelationID: "c1",
	}, time.Now())
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = chat.Submit(Message{
		RoomID:        "room-1",
		SenderID:      "alice",
		Content:       strings.Repeat("x", MaxContentLength+1),
		CorrelationID: "c2",
	}, time.Now())
	require.ErrorIs(t, err, ErrContentTooLong)

	_, err = chat.Submit(Message{
		RoomID:   "room-1",
		SenderID: "alice",
		Content:  "no correlation id",
	}, time.Now())
	require.ErrorIs(t, err, ErrMissingCorrelationID)
}

func TestDirectPairKey_OrderIndependent(t *testing.T) {
	require.Equal(t, DirectPairKey("u2", "u1"), DirectPairKey("u1", "u2"))
	require.Equal(t, "u1|u2", DirectPairKey("u2", "u1"))
}
