package repository

import "context"

// ItemStatus mirrors the lost/found state of an item as recorded by the
// listing service. The messaging core only needs it to derive chat roles.
type ItemStatus string

const (
	ItemStatusLost  ItemStatus = "lost"
	ItemStatusFound ItemStatus = "found"
)

// ItemInfo is the slice of item metadata the messaging core consumes.
type ItemInfo struct {
	ID         string
	ReporterID string
	Status     ItemStatus
}

// ItemDirectory is the external item listing collaborator. Item rooms are
// seeded with the item's reporter, whose role follows from the item status:
// the reporter of a lost item is its owner, the reporter of a found item is
// its finder.
type ItemDirectory interface {
	GetItem(ctx context.Context, itemID string) (*ItemInfo, error)
}
