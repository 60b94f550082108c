package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	qport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/queue/port"
	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/stretchr/testify/require"
)

// fakeServer captures handler registrations so tests can invoke them directly.
type fakeServer struct {
	handlers map[string]qport.Handler
}

func newFakeServer() *fakeServer {
	return &fakeServer{handlers: make(map[string]qport.Handler)}
}

func (s *fakeServer) Register(taskType string, h qport.Handler) { s.handlers[taskType] = h }
func (s *fakeServer) Run(context.Context) error                 { return nil }
func (s *fakeServer) Stop(context.Context) error                { return nil }

// pruneRepo holds messages per room and prunes them the way the SQL adapter
// does: everything beyond the newest keep rows goes, oldest first.
type pruneRepo struct {
	repository.RoomRepository
	messages map[string][]messaging.Message
}

func newPruneRepo() *pruneRepo {
	return &pruneRepo{messages: make(map[string][]messaging.Message)}
}

func (r *pruneRepo) add(roomID, id string, at time.Time) {
	r.messages[roomID] = append(r.messages[roomID], messaging.Message{ID: id, RoomID: roomID, CreatedAt: at})
}

// ids returns the room's remaining message ids in chronological order.
func (r *pruneRepo) ids(roomID string) []string {
	msgs := append([]messaging.Message(nil), r.messages[roomID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func (r *pruneRepo) PruneRoom(_ context.Context, roomID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	msgs := r.messages[roomID]
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	if len(msgs) <= keep {
		return 0, nil
	}
	removed := len(msgs) - keep
	r.messages[roomID] = msgs[:keep]
	return removed, nil
}

func TestPruneRoomTask_EvictsOldestBeyondKeep(t *testing.T) {
	srv := newFakeServer()
	repo := newPruneRepo()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		repo.add("room-1", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	RegisterPruneRoomTask(srv, repo, slog.Default())
	h := srv.handlers[PruneRoomTaskType]
	require.NotNil(t, h)

	payload, err := json.Marshal(PruneRoomTaskPayload{RoomID: "room-1", Keep: 3})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), qport.Task{Type: PruneRoomTaskType, Payload: payload}))

	// The room never holds more than the cap and the oldest rows go first.
	require.Equal(t, []string{"m2", "m3", "m4"}, repo.ids("room-1"))

	// Re-running under the cap removes nothing.
	require.NoError(t, h(context.Background(), qport.Task{Type: PruneRoomTaskType, Payload: payload}))
	require.Equal(t, []string{"m2", "m3", "m4"}, repo.ids("room-1"))
}

func TestPruneRoomTask_LeavesRoomUnderCapAlone(t *testing.T) {
	srv := newFakeServer()
	repo := newPruneRepo()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	repo.add("room-1", "m0", base)
	repo.add("room-1", "m1", base.Add(time.Minute))

	RegisterPruneRoomTask(srv, repo, slog.Default())
	payload, err := json.Marshal(PruneRoomTaskPayload{RoomID: "room-1", Keep: 3})
	require.NoError(t, err)
	require.NoError(t, srv.handlers[PruneRoomTaskType](context.Background(), qport.Task{Type: PruneRoomTaskType, Payload: payload}))

	require.Equal(t, []string{"m0", "m1"}, repo.ids("room-1"))
}

func TestPruneRoomTask_RejectsMalformedPayload(t *testing.T) {
	srv := newFakeServer()
	RegisterPruneRoomTask(srv, newPruneRepo(), slog.Default())

	err := srv.handlers[PruneRoomTaskType](context.Background(), qport.Task{Type: PruneRoomTaskType, Payload: []byte("{")})
	require.Error(t, err)
}
