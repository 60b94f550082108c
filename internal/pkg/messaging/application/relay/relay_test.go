package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	qport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/queue/port"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/task"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/usecase"
	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/wire"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory RoomRepository for relay tests.
type memRepo struct {
	mu           sync.Mutex
	rooms        map[string]messaging.Room
	participants map[string][]messaging.Participant
	messages     []messaging.Message
	reads        map[string]map[string]time.Time // messageID -> userID -> at
	blocks       []messaging.Block
	failSave     bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		rooms:        make(map[string]messaging.Room),
		participants: make(map[string][]messaging.Participant),
		reads:        make(map[string]map[string]time.Time),
	}
}

func (m *memRepo) addRoom(id string, userIDs ...string) {
	m.rooms[id] = messaging.Room{ID: id, Status: messaging.RoomStatusActive}
	for _, u := range userIDs {
		m.participants[id] = append(m.participants[id], messaging.Participant{RoomID: id, UserID: u, Role: messaging.RoleParticipant})
	}
}

func (m *memRepo) GetRoom(_ context.Context, roomID string) (*messaging.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (m *memRepo) GetRoomByItem(context.Context, string) (*messaging.Room, error)    { return nil, nil }
func (m *memRepo) GetRoomByPairKey(context.Context, string) (*messaging.Room, error) { return nil, nil }
func (m *memRepo) CreateRoom(_ context.Context, r messaging.Room) (string, error) {
	id := uuid.NewString()
	m.rooms[id] = r
	return id, nil
}
func (m *memRepo) ArchiveRoom(context.Context, string) error { return nil }
func (m *memRepo) TouchRoom(_ context.Context, roomID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.rooms[roomID]
	if at.After(room.LastActivityAt) {
		room.LastActivityAt = at
		m.rooms[roomID] = room
	}
	return nil
}
func (m *memRepo) ListRoomsByUser(context.Context, string) ([]messaging.Room, error) {
	return nil, nil
}
func (m *memRepo) AddParticipant(_ context.Context, p messaging.Participant) error {
	m.participants[p.RoomID] = append(m.participants[p.RoomID], p)
	return nil
}
func (m *memRepo) ListParticipants(_ context.Context, roomID string) ([]messaging.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]messaging.Participant(nil), m.participants[roomID]...), nil
}
func (m *memRepo) IsParticipant(_ context.Context, roomID, userID string) (bool, error) {
	for _, p := range m.participants[roomID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) SaveMessage(_ context.Context, msg messaging.Message) (string, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return "", time.Time{}, false, errors.New("store unavailable")
	}
	for _, existing := range m.messages {
		if existing.RoomID == msg.RoomID && existing.SenderID == msg.SenderID && existing.CorrelationID == msg.CorrelationID {
			return existing.ID, existing.CreatedAt, false, nil
		}
	}
	msg.ID = uuid.NewString()
	m.messages = append(m.messages, msg)
	return msg.ID, msg.CreatedAt, true, nil
}

func (m *memRepo) GetMessagesByRoom(context.Context, string, int, *time.Time) ([]messaging.Message, error) {
	return nil, nil
}
func (m *memRepo) CountMessages(_ context.Context, roomID string) (int, error) {
	count := 0
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			count++
		}
	}
	return count, nil
}
func (m *memRepo) PruneRoom(context.Context, string, int) (int, error) { return 0, nil }

func (m *memRepo) MarkRead(_ context.Context, userID string, messageIDs []string, at time.Time) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marked := make(map[string][]string)
	for _, id := range messageIDs {
		var msg *messaging.Message
		for i := range m.messages {
			if m.messages[i].ID == id {
				msg = &m.messages[i]
				break
			}
		}
		if msg == nil {
			continue
		}
		if m.reads[id] == nil {
			m.reads[id] = make(map[string]time.Time)
		}
		if _, seen := m.reads[id][userID]; seen {
			continue
		}
		m.reads[id][userID] = at
		marked[msg.RoomID] = append(marked[msg.RoomID], id)
	}
	if len(marked) == 0 {
		return nil, nil
	}
	return marked, nil
}

func (m *memRepo) ListReadReceipts(_ context.Context, messageID string) ([]messaging.ReadReceipt, error) {
	var receipts []messaging.ReadReceipt
	for userID, at := range m.reads[messageID] {
		receipts = append(receipts, messaging.ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: at})
	}
	return receipts, nil
}

func (m *memRepo) AddBlock(_ context.Context, b messaging.Block) error {
	m.blocks = append(m.blocks, b)
	return nil
}
func (m *memRepo) RemoveBlock(context.Context, string, string) error { return nil }
func (m *memRepo) BlocksAmong(_ context.Context, userIDs []string) (messaging.BlockSet, error) {
	set := messaging.BlockSet{}
	among := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		among[id] = struct{}{}
	}
	for _, b := range m.blocks {
		if _, ok := among[b.BlockerID]; !ok {
			continue
		}
		if _, ok := among[b.BlockedID]; !ok {
			continue
		}
		set.Add(b.BlockerID, b.BlockedID)
	}
	return set, nil
}

// fakeHub captures fan-out payloads.
type fakeHub struct {
	mu       sync.Mutex
	byRoom   map[string][][]byte
	excluded []map[string]struct{}
	online   map[string]bool
}

func newFakeHub() *fakeHub {
	return &fakeHub{byRoom: make(map[string][][]byte), online: make(map[string]bool)}
}

func (h *fakeHub) BroadcastRoom(roomID string, payload []byte, exclude map[string]struct{}) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byRoom[roomID] = append(h.byRoom[roomID], payload)
	h.excluded = append(h.excluded, exclude)
	return 1
}
func (h *fakeHub) NotifyUser(string, []byte) int { return 1 }
func (h *fakeHub) HasSessions(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online[userID]
}

// fakeTasks records enqueued background tasks.
type fakeTasks struct {
	mu    sync.Mutex
	tasks []qport.Task
}

func (f *fakeTasks) Enqueue(_ context.Context, t qport.Task, _ ...qport.EnqueueOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
	return uuid.NewString(), nil
}
func (f *fakeTasks) Close() error { return nil }

func (f *fakeTasks) ofType(taskType string) []qport.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []qport.Task
	for _, t := range f.tasks {
		if t.Type == taskType {
			out = append(out, t)
		}
	}
	return out
}

func newTestRelay(repo *memRepo, hub *fakeHub, tasks qport.Client) *Relay {
	return New(repo, hub, nil, tasks, slog.Default(), Options{})
}

func TestRelay_Submit_PersistsAndFansOut(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	hub := newFakeHub()
	r := newTestRelay(repo, hub, nil)

	receipt, err := r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "room-1", SenderID: "bob", Content: "found your item",
	})

	require.NoError(t, err)
	require.NotEmpty(t, receipt.MessageID)
	require.False(t, receipt.Duplicate)
	require.Len(t, hub.byRoom["room-1"], 1)

	var frame wire.Message
	require.NoError(t, json.Unmarshal(hub.byRoom["room-1"][0], &frame))
	require.Equal(t, wire.FrameDelivered, frame.Type)
	require.Equal(t, receipt.MessageID, frame.Payload.ID)
	require.Equal(t, "c1", frame.Payload.CorrelationID)
	// The sender's other sessions are not excluded from fan-out.
	require.Nil(t, hub.excluded[0])
}

func TestRelay_Submit_IdempotentByCorrelationID(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	hub := newFakeHub()
	r := newTestRelay(repo, hub, nil)

	in := SubmitInput{CorrelationID: "c1", RoomID: "room-1", SenderID: "bob", Content: "hello"}

	first, err := r.Submit(context.Background(), in)
	require.NoError(t, err)
	second, err := r.Submit(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, first.MessageID, second.MessageID)
	require.True(t, second.Duplicate)
	// The duplicate receipt reports the originally persisted timestamp, not
	// a timestamp stamped on the retry.
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, repo.messages[0].CreatedAt, second.CreatedAt)
	count, _ := repo.CountMessages(context.Background(), "room-1")
	require.Equal(t, 1, count)
	// Exactly one fan-out for the two acknowledgements.
	require.Len(t, hub.byRoom["room-1"], 1)
}

func TestRelay_Submit_RejectsBlockedPair(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	require.NoError(t, repo.AddBlock(context.Background(), messaging.Block{BlockerID: "alice", BlockedID: "bob"}))
	hub := newFakeHub()
	r := newTestRelay(repo, hub, nil)

	// Blocked in the blocker->sender direction: bob cannot reach alice.
	_, err := r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "room-1", SenderID: "bob", Content: "hello",
	})
	require.ErrorIs(t, err, messaging.ErrUserBlocked)

	// And the blocker cannot reach the blocked either.
	_, err = r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c2", RoomID: "room-1", SenderID: "alice", Content: "hello",
	})
	require.ErrorIs(t, err, messaging.ErrUserBlocked)

	count, _ := repo.CountMessages(context.Background(), "room-1")
	require.Equal(t, 0, count)
	require.Empty(t, hub.byRoom["room-1"])
}

func TestRelay_Submit_RejectsNonParticipantAndUnknownRoom(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	r := newTestRelay(repo, newFakeHub(), nil)

	_, err := r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "room-1", SenderID: "mallory", Content: "hi",
	})
	require.ErrorIs(t, err, messaging.ErrNotParticipant)

	_, err = r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "nope", SenderID: "alice", Content: "hi",
	})
	require.ErrorIs(t, err, usecase.ErrRoomNotFound)
}

func TestRelay_Submit_TransientFailureHasNoSideEffects(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	repo.failSave = true
	hub := newFakeHub()
	r := newTestRelay(repo, hub, nil)

	_, err := r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "room-1", SenderID: "bob", Content: "hello",
	})
	require.ErrorIs(t, err, usecase.ErrPersistence)
	require.Empty(t, hub.byRoom["room-1"])

	// The retry with the same correlation id succeeds once the store recovers.
	repo.failSave = false
	receipt, err := r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "room-1", SenderID: "bob", Content: "hello",
	})
	require.NoError(t, err)
	require.False(t, receipt.Duplicate)
}

func TestRelay_Submit_EnqueuesBackgroundTasks(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	hub := newFakeHub()
	hub.online["bob"] = true // alice stays offline
	tasks := &fakeTasks{}
	r := newTestRelay(repo, hub, tasks)

	_, err := r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "room-1", SenderID: "bob", Content: "hello",
	})
	require.NoError(t, err)

	require.Len(t, tasks.ofType(task.PruneRoomTaskType), 1)

	notifies := tasks.ofType(task.NotifyOfflineTaskType)
	require.Len(t, notifies, 1)
	var p task.NotifyOfflineTaskPayload
	require.NoError(t, json.Unmarshal(notifies[0].Payload, &p))
	require.Equal(t, []string{"alice"}, p.Recipients)
}

func TestRelay_ConcurrentSendersPreserveOwnOrder(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	r := newTestRelay(repo, newFakeHub(), nil)

	const perSender = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sender := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := r.Submit(context.Background(), SubmitInput{
					CorrelationID: sender + "-" + string(rune('a'+i)),
					RoomID:        "room-1",
					SenderID:      sender,
					Content:       "msg",
				})
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}(sender)
	}
	wg.Wait()
	require.Empty(t, errs)

	// Interleaving across senders is fine; each sender's own sequence must
	// stay in submission order.
	perUser := make(map[string][]string)
	for _, msg := range repo.messages {
		perUser[msg.SenderID] = append(perUser[msg.SenderID], msg.CorrelationID)
	}
	for sender, ids := range perUser {
		require.Len(t, ids, perSender, sender)
		require.True(t, sort.StringsAreSorted(ids), "sender %s reordered: %v", sender, ids)
	}
}

func TestRelay_MarkRead_IdempotentAndBroadcast(t *testing.T) {
	repo := newMemRepo()
	repo.addRoom("room-1", "alice", "bob")
	hub := newFakeHub()
	r := newTestRelay(repo, hub, nil)

	receipt, err := r.Submit(context.Background(), SubmitInput{
		CorrelationID: "c1", RoomID: "room-1", SenderID: "bob", Content: "hello",
	})
	require.NoError(t, err)

	require.NoError(t, r.MarkRead(context.Background(), "alice", []string{receipt.MessageID}))
	require.NoError(t, r.MarkRead(context.Background(), "alice", []string{receipt.MessageID}))

	receipts, err := repo.ListReadReceipts(context.Background(), receipt.MessageID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	// One message frame plus exactly one read-receipt frame; the reader is
	// excluded from the receipt broadcast.
	frames := hub.byRoom["room-1"]
	require.Len(t, frames, 2)
	var read wire.MessagesRead
	require.NoError(t, json.Unmarshal(frames[1], &read))
	require.Equal(t, wire.FrameMessagesRead, read.Type)
	require.Equal(t, "alice", read.UserID)
	require.Equal(t, []string{receipt.MessageID}, read.MessageIDs)
	require.Contains(t, hub.excluded[1], "alice")
}
