package adapter

import (
	"context"
	"errors"
	"time"

	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRoomRepository struct {
	pool *pgxpool.Pool
}

func NewPgRoomRepository(pool *pgxpool.Pool) *PgRoomRepository {
	return &PgRoomRepository{pool: pool}
}

func (r *PgRoomRepository) GetRoomByItem(ctx context.Context, itemID string) (*messaging.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	return r.scanRoom(r.pool.QueryRow(ctx, `
		SELECT id::text, item_id::text, pair_key, status, created_at, last_activity_at
		FROM messaging.room
		WHERE item_id = $1::uuid
	`, itemID))
}

func (r *PgRoomRepository) GetRoomByPairKey(ctx context.Context, pairKey string) (*messaging.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	return r.scanRoom(r.pool.QueryRow(ctx, `
		SELECT id::text, item_id::text, pair_key, status, created_at, last_activity_at
		FROM messaging.room
		WHERE pair_key = $1
	`, pairKey))
}

func (r *PgRoomRepository) GetRoom(ctx context.Context, roomID string) (*messaging.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	return r.scanRoom(r.pool.QueryRow(ctx, `
		SELECT id::text, item_id::text, pair_key, status, created_at, last_activity_at
		FROM messaging.room
		WHERE id = $1::uuid
	`, roomID))
}

func (r *PgRoomRepository) CreateRoom(ctx context.Context, room messaging.Room) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgRoomRepository: nil pool")
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messaging.room (item_id, pair_key, status, created_at, last_activity_at)
		VALUES (NULLIF($1, '')::uuid, NULLIF($2, ''), $3, $4, $4)
		RETURNING id::text
	`, deref(room.ItemID), deref(room.PairKey), room.Status, room.CreatedAt).Scan(&id)
	return id, err
}

func (r *PgRoomRepository) ArchiveRoom(ctx context.Context, roomID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgRoomRepository: nil pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE messaging.room SET status = $2 WHERE id = $1::uuid
	`, roomID, messaging.RoomStatusArchived)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgRoomRepository) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New("PgRoomRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE messaging.room SET last_activity_at = GREATEST(last_activity_at, $2) WHERE id = $1::uuid
	`, roomID, at)
	return err
}

func (r *PgRoomRepository) ListRoomsByUser(ctx context.Context, userID string) ([]messaging.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT room.id::text, room.item_id::text, room.pair_key, room.status, room.created_at, room.last_activity_at
		FROM messaging.room room
		JOIN messaging.participant p ON p.room_id = room.id
		WHERE p.user_id = $1::uuid
		ORDER BY room.last_activity_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []messaging.Room
	for rows.Next() {
		room, err := r.scanRoomRow(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (r *PgRoomRepository) AddParticipant(ctx context.Context, p messaging.Participant) error {
	if r == nil || r.pool == nil {
		return errors.New("PgRoomRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messaging.participant (room_id, user_id, role, joined_at)
		VALUES ($1::uuid, $2::uuid, $3, $4)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`, p.RoomID, p.UserID, p.Role, p.JoinedAt)
	return err
}

func (r *PgRoomRepository) ListParticipants(ctx context.Context, roomID string) ([]messaging.Participant, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT room_id::text, user_id::text, role, joined_at
		FROM messaging.participant
		WHERE room_id = $1::uuid
		ORDER BY joined_at
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []messaging.Participant
	for rows.Next() {
		var p messaging.Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Role, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *PgRoomRepository) IsParticipant(ctx context.Context, roomID string, userID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgRoomRepository: nil pool")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messaging.participant
			WHERE room_id = $1::uuid AND user_id = $2::uuid
		)
	`, roomID, userID).Scan(&exists)
	return exists, err
}

// SaveMessage inserts the message unless the same (room, sender, correlation id)
// was already persisted, in which case the existing id is returned. The unique
// index on those three columns is what makes client retries safe.
func (r *PgRoomRepository) SaveMessage(ctx context.Context, m messaging.Message) (string, time.Time, bool, error) {
	if r == nil || r.pool == nil {
		return "", time.Time{}, false, errors.New("PgRoomRepository: nil pool")
	}
	var (
		id        string
		createdAt time.Time
		created   bool
	)
	err := r.pool.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO messaging.message (room_id, sender_id, content, msg_type, created_at, correlation_id)
			VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
			ON CONFLICT (room_id, sender_id, correlation_id) DO NOTHING
			RETURNING id, created_at
		)
		SELECT id::text, created_at, created FROM (
			SELECT id, created_at, true AS created FROM ins
			UNION ALL
			SELECT id, created_at, false FROM messaging.message
			WHERE room_id = $1::uuid AND sender_id = $2::uuid AND correlation_id = $6
		) candidates
		ORDER BY created DESC
		LIMIT 1
	`, m.RoomID, m.SenderID, m.Content, m.MsgType, m.CreatedAt, m.CorrelationID).Scan(&id, &createdAt, &created)
	return id, createdAt, created, err
}

func (r *PgRoomRepository) GetMessagesByRoom(ctx context.Context, roomID string, limit int, before *time.Time) ([]messaging.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, room_id::text, sender_id::text, content, msg_type, created_at, correlation_id
		FROM messaging.message
		WHERE room_id = $1::uuid AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $2
	`, roomID, limit, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []messaging.Message
	for rows.Next() {
		var msg messaging.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.MsgType, &msg.CreatedAt, &msg.CorrelationID); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *PgRoomRepository) CountMessages(ctx context.Context, roomID string) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgRoomRepository: nil pool")
	}
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messaging.message WHERE room_id = $1::uuid
	`, roomID).Scan(&count)
	return count, err
}

// PruneRoom removes the oldest messages beyond keep. Read receipts go with
// their messages via ON DELETE CASCADE.
func (r *PgRoomRepository) PruneRoom(ctx context.Context, roomID string, keep int) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgRoomRepository: nil pool")
	}
	if keep < 0 {
		keep = 0
	}
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM messaging.message
		WHERE id IN (
			SELECT id FROM messaging.message
			WHERE room_id = $1::uuid
			ORDER BY created_at DESC
			OFFSET $2
		)
	`, roomID, keep)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// MarkRead appends (userID, at) to the read-by set of each message the user is
// allowed to see. The join against participant doubles as the membership check
// and ON CONFLICT DO NOTHING makes re-marking a no-op.
func (r *PgRoomRepository) MarkRead(ctx context.Context, userID string, messageIDs []string, at time.Time) (map[string][]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		WITH marked AS (
			INSERT INTO messaging.message_read (message_id, user_id, read_at)
			SELECT m.id, $2::uuid, $3
			FROM messaging.message m
			JOIN messaging.participant p ON p.room_id = m.room_id AND p.user_id = $2::uuid
			WHERE m.id = ANY($1::uuid[])
			ON CONFLICT (message_id, user_id) DO NOTHING
			RETURNING message_id
		)
		SELECT m.room_id::text, m.id::text
		FROM messaging.message m
		JOIN marked ON marked.message_id = m.id
	`, messageIDs, userID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marked := make(map[string][]string)
	for rows.Next() {
		var roomID, id string
		if err := rows.Scan(&roomID, &id); err != nil {
			return nil, err
		}
		marked[roomID] = append(marked[roomID], id)
	}
	return marked, rows.Err()
}

func (r *PgRoomRepository) ListReadReceipts(ctx context.Context, messageID string) ([]messaging.ReadReceipt, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT message_id::text, user_id::text, read_at
		FROM messaging.message_read
		WHERE message_id = $1::uuid
		ORDER BY read_at
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []messaging.ReadReceipt
	for rows.Next() {
		var rr messaging.ReadReceipt
		if err := rows.Scan(&rr.MessageID, &rr.UserID, &rr.ReadAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, rr)
	}
	return receipts, rows.Err()
}

func (r *PgRoomRepository) AddBlock(ctx context.Context, b messaging.Block) error {
	if r == nil || r.pool == nil {
		return errors.New("PgRoomRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messaging.block (blocker_id, blocked_id, created_at)
		VALUES ($1::uuid, $2::uuid, $3)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`, b.BlockerID, b.BlockedID, b.CreatedAt)
	return err
}

func (r *PgRoomRepository) RemoveBlock(ctx context.Context, blockerID, blockedID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgRoomRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM messaging.block WHERE blocker_id = $1::uuid AND blocked_id = $2::uuid
	`, blockerID, blockedID)
	return err
}

func (r *PgRoomRepository) BlocksAmong(ctx context.Context, userIDs []string) (messaging.BlockSet, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgRoomRepository: nil pool")
	}
	set := messaging.BlockSet{}
	if len(userIDs) < 2 {
		return set, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT blocker_id::text, blocked_id::text
		FROM messaging.block
		WHERE blocker_id = ANY($1::uuid[]) AND blocked_id = ANY($1::uuid[])
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var blocker, blocked string
		if err := rows.Scan(&blocker, &blocked); err != nil {
			return nil, err
		}
		set.Add(blocker, blocked)
	}
	return set, rows.Err()
}

func (r *PgRoomRepository) scanRoom(row pgx.Row) (*messaging.Room, error) {
	var room messaging.Room
	err := row.Scan(&room.ID, &room.ItemID, &room.PairKey, &room.Status, &room.CreatedAt, &room.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *PgRoomRepository) scanRoomRow(rows pgx.Rows) (*messaging.Room, error) {
	var room messaging.Room
	if err := rows.Scan(&room.ID, &room.ItemID, &room.PairKey, &room.Status, &room.CreatedAt, &room.LastActivityAt); err != nil {
		return nil, err
	}
	return &room, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
