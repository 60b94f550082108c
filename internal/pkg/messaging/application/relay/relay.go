package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cacheport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/cache/port"
	qport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/queue/port"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/task"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/usecase"
	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/wire"
)

// SessionHub is the slice of the connection registry the relay needs for
// fan-out targeting. *realtime.Registry is the production implementation.
type SessionHub interface {
	BroadcastRoom(roomID string, payload []byte, exclude map[string]struct{}) int
	NotifyUser(userID string, payload []byte) int
	HasSessions(userID string) bool
}

// Options tune the relay. Zero values fall back to the defaults below.
type Options struct {
	RetentionCap        int           // messages kept per room
	ParticipantCacheTTL time.Duration // staleness bound for the participant-list cache
}

const (
	defaultRetentionCap        = 1000
	defaultParticipantCacheTTL = 30 * time.Second
)

// SubmitInput is one inbound send intent.
type SubmitInput struct {
	CorrelationID string
	RoomID        string
	SenderID      string
	Content       string
	MsgType       messaging.MessageType
}

// Receipt maps the client correlation id to the server-assigned message id.
// Duplicate is true when an earlier submit with the same correlation id
// already persisted the message.
type Receipt struct {
	CorrelationID string
	MessageID     string
	CreatedAt     time.Time
	Duplicate     bool
}

// Relay is the single authoritative path for message ingestion: authorize,
// persist, fan out. No component writes messages around it, which is what
// makes the idempotency and block-check guarantees enforceable.
//
// Persist + fan-out is serialized per room; submits to different rooms run
// concurrently. Cross-sender interleaving within a room follows processing
// order, which becomes the authoritative order shown to all viewers.
type Relay struct {
	repo  repository.RoomRepository
	hub   SessionHub
	cache cacheport.Cache // optional
	tasks qport.Client    // optional
	log   *slog.Logger
	opts  Options

	locks sync.Map // roomID -> *sync.Mutex
}

func New(repo repository.RoomRepository, hub SessionHub, cache cacheport.Cache, tasks qport.Client, log *slog.Logger, opts Options) *Relay {
	if opts.RetentionCap <= 0 {
		opts.RetentionCap = defaultRetentionCap
	}
	if opts.ParticipantCacheTTL <= 0 {
		opts.ParticipantCacheTTL = defaultParticipantCacheTTL
	}
	return &Relay{repo: repo, hub: hub, cache: cache, tasks: tasks, log: log, opts: opts}
}

// Submit authorizes, persists and fans out one message.
//
// Idempotency: a retry carrying an already-persisted correlation id returns
// the existing message id without a second persist or fan-out, so a client
// that lost the first acknowledgement can retry safely.
func (r *Relay) Submit(ctx context.Context, in SubmitInput) (Receipt, error) {
	lock := r.roomLock(in.RoomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.repo.GetRoom(ctx, in.RoomID)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}
	if room == nil {
		return Receipt{}, usecase.ErrRoomNotFound
	}

	participants, err := r.loadParticipants(ctx, in.RoomID)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}

	chat := &messaging.RoomChat{
		Room:         *room,
		Participants: make(map[string]messaging.Participant, len(participants)),
	}
	for _, p := range participants {
		chat.Participants[p.UserID] = p
	}

	// Blocks are read fresh on every submit: a block created mid-conversation
	// must suppress delivery from the next message on.
	chat.Blocks, err = r.repo.BlocksAmong(ctx, chat.ParticipantIDs())
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}

	msg, err := chat.Submit(messaging.Message{
		RoomID:        in.RoomID,
		SenderID:      in.SenderID,
		Content:       in.Content,
		MsgType:       in.MsgType,
		CorrelationID: in.CorrelationID,
	}, time.Now().UTC())
	if err != nil {
		return Receipt{}, err
	}

	id, storedAt, created, err := r.repo.SaveMessage(ctx, msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}
	if !created {
		// Retried send: the original submit already fanned out. The receipt
		// carries the originally persisted timestamp, not the retry's.
		return Receipt{CorrelationID: in.CorrelationID, MessageID: id, CreatedAt: storedAt, Duplicate: true}, nil
	}
	msg.ID = id
	msg.CreatedAt = storedAt

	if err := r.repo.TouchRoom(ctx, in.RoomID, msg.CreatedAt); err != nil {
		r.log.Warn("failed to advance room activity", "room_id", in.RoomID, "error", err)
	}

	r.fanOut(msg)
	r.enqueuePrune(ctx, in.RoomID)
	r.enqueueOfflineNotify(ctx, msg, chat.OtherParticipantIDs(in.SenderID))

	return Receipt{CorrelationID: in.CorrelationID, MessageID: id, CreatedAt: msg.CreatedAt}, nil
}

// MarkRead appends the user to the read-by set of each message and pushes a
// read-receipt event to the other participants. Already-read messages are
// skipped, so replays cause no duplicate events.
func (r *Relay) MarkRead(ctx context.Context, userID string, messageIDs []string) error {
	if userID == "" || len(messageIDs) == 0 {
		return nil
	}

	marked, err := r.repo.MarkRead(ctx, userID, messageIDs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", usecase.ErrPersistence, err)
	}

	for roomID, ids := range marked {
		payload, err := json.Marshal(wire.MessagesRead{
			Type:       wire.FrameMessagesRead,
			RoomID:     roomID,
			UserID:     userID,
			MessageIDs: ids,
		})
		if err != nil {
			r.log.Error("failed to encode read receipt", "room_id", roomID, "error", err)
			continue
		}
		r.hub.BroadcastRoom(roomID, payload, map[string]struct{}{userID: {}})
	}
	return nil
}

func (r *Relay) fanOut(msg messaging.Message) {
	payload, err := json.Marshal(wire.Message{
		Type:   wire.FrameDelivered,
		RoomID: msg.RoomID,
		Payload: wire.Payload{
			ID:            msg.ID,
			RoomID:        msg.RoomID,
			SenderID:      msg.SenderID,
			Content:       msg.Content,
			MsgType:       int16(msg.MsgType),
			CreatedAt:     msg.CreatedAt,
			CorrelationID: msg.CorrelationID,
		},
	})
	if err != nil {
		r.log.Error("failed to encode message for fan-out", "message_id", msg.ID, "error", err)
		return
	}

	// The sender's own other sessions receive the message too, so every
	// device converges on the same view.
	delivered := r.hub.BroadcastRoom(msg.RoomID, payload, nil)
	r.log.Debug("message fanned out", "message_id", msg.ID, "room_id", msg.RoomID, "sessions", delivered)
}

func (r *Relay) enqueuePrune(ctx context.Context, roomID string) {
	if r.tasks == nil {
		return
	}
	payload, err := json.Marshal(task.PruneRoomTaskPayload{RoomID: roomID, Keep: r.opts.RetentionCap})
	if err != nil {
		return
	}
	_, err = r.tasks.Enqueue(ctx, qport.Task{Type: task.PruneRoomTaskType, Payload: payload},
		qport.EnqueueOption{Queue: "messaging", MaxRetry: 3})
	if err != nil {
		r.log.Warn("failed to enqueue retention task", "room_id", roomID, "error", err)
	}
}

func (r *Relay) enqueueOfflineNotify(ctx context.Context, msg messaging.Message, others []string) {
	if r.tasks == nil {
		return
	}
	var offline []string
	for _, userID := range others {
		if !r.hub.HasSessions(userID) {
			offline = append(offline, userID)
		}
	}
	if len(offline) == 0 {
		return
	}
	payload, err := json.Marshal(task.NotifyOfflineTaskPayload{
		RoomID:     msg.RoomID,
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		Recipients: offline,
	})
	if err != nil {
		return
	}
	_, err = r.tasks.Enqueue(ctx, qport.Task{Type: task.NotifyOfflineTaskType, Payload: payload},
		qport.EnqueueOption{Queue: "messaging", MaxRetry: 3})
	if err != nil {
		r.log.Warn("failed to enqueue offline notification", "message_id", msg.ID, "error", err)
	}
}

// loadParticipants consults the cache before the store. Participants are only
// ever added, so a stale entry can at worst miss a very recent joiner for one
// TTL window; blocks are deliberately never cached.
func (r *Relay) loadParticipants(ctx context.Context, roomID string) ([]messaging.Participant, error) {
	key := participantCacheKey(roomID)
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, key); err == nil {
			var cached []messaging.Participant
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, cacheport.ErrMiss) {
			r.log.Warn("participant cache read failed", "room_id", roomID, "error", err)
		}
	}

	participants, err := r.repo.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if raw, err := json.Marshal(participants); err == nil {
			if err := r.cache.Set(ctx, key, string(raw), r.opts.ParticipantCacheTTL); err != nil {
				r.log.Warn("participant cache write failed", "room_id", roomID, "error", err)
			}
		}
	}
	return participants, nil
}

// InvalidateParticipants drops the cached participant list after a membership
// change so the next submit sees the new roster immediately.
func (r *Relay) InvalidateParticipants(ctx context.Context, roomID string) {
	if r.cache == nil {
		return
	}
	if _, err := r.cache.Del(ctx, participantCacheKey(roomID)); err != nil {
		r.log.Warn("participant cache invalidation failed", "room_id", roomID, "error", err)
	}
}

func participantCacheKey(roomID string) string {
	return "messaging:participants:" + roomID
}

func (r *Relay) roomLock(roomID string) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(roomID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
