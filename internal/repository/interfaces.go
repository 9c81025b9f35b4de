// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"marvelmind-service/internal/model"
)

// PositionRepository stores and queries persisted position fixes
type PositionRepository interface {
	// Save persists one fix.
	Save(ctx context.Context, fix *model.PositionFix) error

	// SaveBatch persists a poll cycle's fixes in one transaction.
	SaveBatch(ctx context.Context, fixes []*model.PositionFix) error

	// History returns fixes for an address inside [from, to), newest
	// first, capped at limit.
	History(ctx context.Context, address uint16, from, to time.Time, limit int) ([]*model.PositionFix, error)

	// Latest returns the most recent fix for an address.
	Latest(ctx context.Context, address uint16) (*model.PositionFix, error)

	// DeleteOlderThan removes fixes recorded before the cutoff and
	// returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
