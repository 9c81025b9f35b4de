// internal/repository/position_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"marvelmind-service/internal/database"
	"marvelmind-service/internal/model"
)

// positionRepository implements PositionRepository on Postgres
type positionRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *database.DB, logger *zap.Logger) PositionRepository {
	return &positionRepository{
		db:     db,
		logger: logger,
	}
}

// Save persists one fix
func (r *positionRepository) Save(ctx context.Context, fix *model.PositionFix) error {
	query := `
		INSERT INTO position_fixes (id, address, x_mm, y_mm, z_mm, q, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		fix.ID, int32(fix.Address), fix.X, fix.Y, fix.Z, int16(fix.Q), fix.RecordedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save position fix",
			zap.Error(err),
			zap.Uint16("address", fix.Address),
		)
		return fmt.Errorf("failed to save position fix: %w", err)
	}

	return nil
}

// SaveBatch persists a poll cycle's fixes in one transaction
func (r *positionRepository) SaveBatch(ctx context.Context, fixes []*model.PositionFix) error {
	if len(fixes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO position_fixes (id, address, x_mm, y_mm, z_mm, q, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, fix := range fixes {
		if _, err := stmt.ExecContext(ctx,
			fix.ID, int32(fix.Address), fix.X, fix.Y, fix.Z, int16(fix.Q), fix.RecordedAt,
		); err != nil {
			return fmt.Errorf("failed to save fix for address %d: %w", fix.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fixes: %w", err)
	}

	r.logger.Debug("Position fixes saved", zap.Int("count", len(fixes)))
	return nil
}

// History returns fixes for an address inside [from, to), newest first
func (r *positionRepository) History(ctx context.Context, address uint16, from, to time.Time, limit int) ([]*model.PositionFix, error) {
	query := `
		SELECT id, address, x_mm, y_mm, z_mm, q, recorded_at
		FROM position_fixes
		WHERE address = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at DESC
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, int32(address), from, to, limit)
	if err != nil {
		r.logger.Error("Failed to query position history",
			zap.Error(err),
			zap.Uint16("address", address),
		)
		return nil, fmt.Errorf("failed to query position history: %w", err)
	}
	defer rows.Close()

	var fixes []*model.PositionFix
	for rows.Next() {
		fix, err := scanFix(rows)
		if err != nil {
			return nil, err
		}
		fixes = append(fixes, fix)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read position history: %w", err)
	}

	return fixes, nil
}

// Latest returns the most recent fix for an address
func (r *positionRepository) Latest(ctx context.Context, address uint16) (*model.PositionFix, error) {
	query := `
		SELECT id, address, x_mm, y_mm, z_mm, q, recorded_at
		FROM position_fixes
		WHERE address = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, int32(address))

	fix := &model.PositionFix{}
	var addr int32
	var q int16
	err := row.Scan(&fix.ID, &addr, &fix.X, &fix.Y, &fix.Z, &q, &fix.RecordedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no fixes recorded for address %d", address)
		}
		return nil, fmt.Errorf("failed to get latest fix: %w", err)
	}

	fix.Address = uint16(addr)
	fix.Q = uint8(q)
	return fix, nil
}

// DeleteOlderThan removes fixes recorded before the cutoff
func (r *positionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM position_fixes WHERE recorded_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old fixes: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted fixes: %w", err)
	}

	return deleted, nil
}

// scanFix reads one fix row
func scanFix(rows *sql.Rows) (*model.PositionFix, error) {
	fix := &model.PositionFix{}
	var addr int32
	var q int16

	if err := rows.Scan(&fix.ID, &addr, &fix.X, &fix.Y, &fix.Z, &q, &fix.RecordedAt); err != nil {
		return nil, fmt.Errorf("failed to scan position fix: %w", err)
	}

	fix.Address = uint16(addr)
	fix.Q = uint8(q)
	return fix, nil
}
