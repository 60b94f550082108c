package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/client/queue"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/wire"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handlers Handlers) (*Client, *queue.Queue) {
	t.Helper()
	q, err := queue.New(queue.NewMemoryStore(), slog.Default(), queue.Options{})
	require.NoError(t, err)
	c, err := New(Options{URL: "ws://localhost:8080/api/v1/ws", UserID: "alice"}, q, handlers)
	require.NoError(t, err)
	return c, q
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestDispatch_AckRemovesQueueEntry(t *testing.T) {
	c, q := newTestClient(t, Handlers{})

	e, err := q.Enqueue("room-1", "hello", 0)
	require.NoError(t, err)
	require.NoError(t, q.Flush(func(queue.Entry) error { return nil }))

	c.dispatch(marshal(t, wire.Ack{
		Type:          wire.FrameAck,
		RoomID:        "room-1",
		CorrelationID: e.CorrelationID,
		MessageID:     "msg-1",
	}))

	require.Zero(t, q.Len())
}

func TestDispatch_TransientFailureRequeues(t *testing.T) {
	c, q := newTestClient(t, Handlers{})

	e, err := q.Enqueue("room-1", "flaky", 0)
	require.NoError(t, err)
	require.NoError(t, q.Flush(func(queue.Entry) error { return nil }))

	c.dispatch(marshal(t, wire.Error{
		Type:          wire.FrameMessageFailed,
		Code:          "internal_error",
		Error:         "unexpected persistence error",
		CorrelationID: e.CorrelationID,
	}))

	pending := q.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, e.CorrelationID, pending[0].CorrelationID)
}

func TestDispatch_PermanentFailureParksEntry(t *testing.T) {
	c, q := newTestClient(t, Handlers{})

	e, err := q.Enqueue("room-1", "blocked", 0)
	require.NoError(t, err)
	require.NoError(t, q.Flush(func(queue.Entry) error { return nil }))

	c.dispatch(marshal(t, wire.Error{
		Type:          wire.FrameMessageFailed,
		Code:          "forbidden",
		Error:         "message not allowed",
		CorrelationID: e.CorrelationID,
	}))

	require.Empty(t, q.Pending())
	failed := q.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, "message not allowed", failed[0].LastError)
}

func TestDispatch_DeliveredMessageReachesHandler(t *testing.T) {
	var got wire.Payload
	c, _ := newTestClient(t, Handlers{
		OnMessage: func(p wire.Payload) { got = p },
	})

	c.dispatch(marshal(t, wire.Message{
		Type:   wire.FrameDelivered,
		RoomID: "room-1",
		Payload: wire.Payload{
			ID:       "msg-1",
			RoomID:   "room-1",
			SenderID: "bob",
			Content:  "found your keys",
		},
	}))

	require.Equal(t, "msg-1", got.ID)
	require.Equal(t, "found your keys", got.Content)
}

func TestDispatch_ReadReceiptReachesHandler(t *testing.T) {
	var got wire.MessagesRead
	c, _ := newTestClient(t, Handlers{
		OnRead: func(r wire.MessagesRead) { got = r },
	})

	c.dispatch(marshal(t, wire.MessagesRead{
		Type:       wire.FrameMessagesRead,
		RoomID:     "room-1",
		UserID:     "bob",
		MessageIDs: []string{"msg-1", "msg-2"},
	}))

	require.Equal(t, "bob", got.UserID)
	require.Len(t, got.MessageIDs, 2)
}

func TestMaintainQueue_ResendsTransientFailuresWhileConnected(t *testing.T) {
	q, err := queue.New(queue.NewMemoryStore(), slog.Default(), queue.Options{MaxRetries: 2})
	require.NoError(t, err)
	gaveUp := make(chan []queue.Entry, 1)
	c, err := New(Options{
		URL:           "ws://localhost:8080/api/v1/ws",
		UserID:        "alice",
		FlushInterval: 5 * time.Millisecond,
	}, q, Handlers{OnGaveUp: func(entries []queue.Entry) { gaveUp <- entries }})
	require.NoError(t, err)

	e, err := q.Enqueue("room-1", "flaky", 0)
	require.NoError(t, err)
	// The first attempt reached the server but came back as a transient
	// failure, which returns the entry to pending on a live connection.
	require.NoError(t, q.Flush(func(queue.Entry) error { return nil }))
	c.dispatch(marshal(t, wire.Error{
		Type:          wire.FrameMessageFailed,
		Code:          "internal_error",
		Error:         "unexpected persistence error",
		CorrelationID: e.CorrelationID,
	}))
	require.Len(t, q.Pending(), 1)

	// The background drain keeps resending it until the attempt budget runs
	// out, then the sweep surfaces it via OnGaveUp.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.maintainQueue(ctx)

	select {
	case evicted := <-gaveUp:
		require.Len(t, evicted, 1)
		require.Equal(t, e.CorrelationID, evicted[0].CorrelationID)
		require.Equal(t, "retry limit reached", evicted[0].LastError)
	case <-time.After(2 * time.Second):
		t.Fatal("pending entry was never retried by the background drain")
	}
	require.Empty(t, q.Pending())
	require.Len(t, q.Failed(), 1)
}

func TestSend_QueuesWhenDisconnected(t *testing.T) {
	c, q := newTestClient(t, Handlers{})

	e, err := c.Send("room-1", "queued offline")
	require.NoError(t, err)
	require.NotEmpty(t, e.CorrelationID)

	pending := q.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "queued offline", pending[0].Content)
}
