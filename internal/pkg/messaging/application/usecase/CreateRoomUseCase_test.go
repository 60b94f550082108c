package usecase

import (
	"context"
	"fmt"
	"testing"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/stretchr/testify/require"
)

// fakeRepo implements only the repository methods the room use cases touch;
// anything else panics via the embedded nil interface.
type fakeRepo struct {
	repository.RoomRepository

	rooms        map[string]*messaging.Room
	participants map[string][]messaging.Participant
	nextID       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rooms:        make(map[string]*messaging.Room),
		participants: make(map[string][]messaging.Participant),
	}
}

func (f *fakeRepo) GetRoomByItem(_ context.Context, itemID string) (*messaging.Room, error) {
	for _, r := range f.rooms {
		if r.ItemID != nil && *r.ItemID == itemID {
			room := *r
			return &room, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) GetRoomByPairKey(_ context.Context, pairKey string) (*messaging.Room, error) {
	for _, r := range f.rooms {
		if r.PairKey != nil && *r.PairKey == pairKey {
			room := *r
			return &room, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateRoom(_ context.Context, r messaging.Room) (string, error) {
	f.nextID++
	id := fmt.Sprintf("room-%d", f.nextID)
	r.ID = id
	r.LastActivityAt = r.CreatedAt
	f.rooms[id] = &r
	return id, nil
}

func (f *fakeRepo) AddParticipant(_ context.Context, p messaging.Participant) error {
	for _, existing := range f.participants[p.RoomID] {
		if existing.UserID == p.UserID {
			return nil
		}
	}
	f.participants[p.RoomID] = append(f.participants[p.RoomID], p)
	return nil
}

func (f *fakeRepo) ListParticipants(_ context.Context, roomID string) ([]messaging.Participant, error) {
	return f.participants[roomID], nil
}

type fakeItems struct {
	items map[string]repository.ItemInfo
}

func (f *fakeItems) GetItem(_ context.Context, itemID string) (*repository.ItemInfo, error) {
	if item, ok := f.items[itemID]; ok {
		return &item, nil
	}
	return nil, nil
}

func TestCreateDirectRoom_SamePairLandsInSameRoom(t *testing.T) {
	repo := newFakeRepo()
	uc := NewCreateDirectRoomUseCase(repo)

	first, err := uc.Execute(context.Background(), CreateDirectRoomInput{UserA: "alice", UserB: "bob"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Len(t, repo.participants[first.ID], 2)

	// The initiator does not matter.
	second, err := uc.Execute(context.Background(), CreateDirectRoomInput{UserA: "bob", UserB: "alice"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.rooms, 1)
}

func TestCreateDirectRoom_RejectsSelfChat(t *testing.T) {
	uc := NewCreateDirectRoomUseCase(newFakeRepo())

	_, err := uc.Execute(context.Background(), CreateDirectRoomInput{UserA: "alice", UserB: "alice"})
	require.ErrorIs(t, err, messaging.ErrSelfChat)
}

func TestCreateItemRoom_SeedsComplementaryRoles(t *testing.T) {
	repo := newFakeRepo()
	items := &fakeItems{items: map[string]repository.ItemInfo{
		"item-1": {ID: "item-1", ReporterID: "alice", Status: repository.ItemStatusLost},
	}}
	uc := NewCreateItemRoomUseCase(repo, items)

	room, err := uc.Execute(context.Background(), CreateItemRoomInput{
		ItemID:           "item-1",
		RequestingUserID: "bob",
	})
	require.NoError(t, err)

	byUser := make(map[string]messaging.ParticipantRole)
	for _, p := range repo.participants[room.ID] {
		byUser[p.UserID] = p.Role
	}
	// The reporter of a lost item is its owner; whoever responds is the finder.
	require.Equal(t, messaging.RoleOwner, byUser["alice"])
	require.Equal(t, messaging.RoleFinder, byUser["bob"])
}

func TestCreateItemRoom_FoundItemReporterIsFinder(t *testing.T) {
	repo := newFakeRepo()
	items := &fakeItems{items: map[string]repository.ItemInfo{
		"item-2": {ID: "item-2", ReporterID: "carol", Status: repository.ItemStatusFound},
	}}
	uc := NewCreateItemRoomUseCase(repo, items)

	room, err := uc.Execute(context.Background(), CreateItemRoomInput{
		ItemID:           "item-2",
		RequestingUserID: "dave",
	})
	require.NoError(t, err)

	byUser := make(map[string]messaging.ParticipantRole)
	for _, p := range repo.participants[room.ID] {
		byUser[p.UserID] = p.Role
	}
	require.Equal(t, messaging.RoleFinder, byUser["carol"])
	require.Equal(t, messaging.RoleOwner, byUser["dave"])
}

func TestCreateItemRoom_GetOrCreateIsStable(t *testing.T) {
	repo := newFakeRepo()
	items := &fakeItems{items: map[string]repository.ItemInfo{
		"item-1": {ID: "item-1", ReporterID: "alice", Status: repository.ItemStatusLost},
	}}
	uc := NewCreateItemRoomUseCase(repo, items)

	first, err := uc.Execute(context.Background(), CreateItemRoomInput{ItemID: "item-1", RequestingUserID: "bob"})
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), CreateItemRoomInput{ItemID: "item-1", RequestingUserID: "bob"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.participants[first.ID], 2)
}

func TestCreateItemRoom_LateJoinerGetsComplementRole(t *testing.T) {
	repo := newFakeRepo()
	items := &fakeItems{items: map[string]repository.ItemInfo{
		"item-1": {ID: "item-1", ReporterID: "alice", Status: repository.ItemStatusLost},
	}}
	uc := NewCreateItemRoomUseCase(repo, items)

	room, err := uc.Execute(context.Background(), CreateItemRoomInput{ItemID: "item-1", RequestingUserID: "bob"})
	require.NoError(t, err)

	// A third user opening the same item room joins with the complement of
	// the first participant's role.
	_, err = uc.Execute(context.Background(), CreateItemRoomInput{ItemID: "item-1", RequestingUserID: "erin"})
	require.NoError(t, err)
	require.Len(t, repo.participants[room.ID], 3)
}

func TestCreateItemRoom_ReporterCannotOpenOwnRoomAlone(t *testing.T) {
	repo := newFakeRepo()
	items := &fakeItems{items: map[string]repository.ItemInfo{
		"item-1": {ID: "item-1", ReporterID: "alice", Status: repository.ItemStatusLost},
	}}
	uc := NewCreateItemRoomUseCase(repo, items)

	_, err := uc.Execute(context.Background(), CreateItemRoomInput{ItemID: "item-1", RequestingUserID: "alice"})
	require.ErrorIs(t, err, messaging.ErrSelfChat)
}

func TestCreateItemRoom_UnknownItem(t *testing.T) {
	uc := NewCreateItemRoomUseCase(newFakeRepo(), &fakeItems{items: map[string]repository.ItemInfo{}})

	_, err := uc.Execute(context.Background(), CreateItemRoomInput{ItemID: "missing", RequestingUserID: "bob"})
	require.ErrorIs(t, err, ErrItemNotFound)
}
