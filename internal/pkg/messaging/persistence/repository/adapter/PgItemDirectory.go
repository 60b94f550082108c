package adapter

import (
	"context"
	"errors"

	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgItemDirectory reads the slim item projection the listing service maintains.
// The messaging core never writes to it.
type PgItemDirectory struct {
	pool *pgxpool.Pool
}

func NewPgItemDirectory(pool *pgxpool.Pool) *PgItemDirectory {
	return &PgItemDirectory{pool: pool}
}

var _ repository.ItemDirectory = (*PgItemDirectory)(nil)

func (d *PgItemDirectory) GetItem(ctx context.Context, itemID string) (*repository.ItemInfo, error) {
	if d == nil || d.pool == nil {
		return nil, errors.New("PgItemDirectory: nil pool")
	}
	var info repository.ItemInfo
	err := d.pool.QueryRow(ctx, `
		SELECT id::text, reporter_id::text, status
		FROM listing.item
		WHERE id = $1::uuid
	`, itemID).Scan(&info.ID, &info.ReporterID, &info.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}
