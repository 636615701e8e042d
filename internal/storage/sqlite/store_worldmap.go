package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/veilwood.quest/internal/expedition/domain"
	"github.com/louisbranch/veilwood.quest/internal/storage"
)

// squareKey is the canonical map row key. Square ids are matched
// case-insensitively everywhere, so rows are keyed uppercased.
func squareKey(squareID string) string {
	return strings.ToUpper(strings.TrimSpace(squareID))
}

// GetSquare loads a shared map square by id.
func (s *Store) GetSquare(ctx context.Context, squareID string) (domain.Square, error) {
	if err := ctx.Err(); err != nil {
		return domain.Square{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Square{}, fmt.Errorf("storage is not configured")
	}
	key := squareKey(squareID)
	if key == "" {
		return domain.Square{}, fmt.Errorf("square id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT document FROM map_squares WHERE square_id = ?`, key)

	var document string
	if err := row.Scan(&document); err != nil {
		if err == sql.ErrNoRows {
			return domain.Square{}, storage.ErrNotFound
		}
		return domain.Square{}, fmt.Errorf("get square: %w", err)
	}

	var square domain.Square
	if err := json.Unmarshal([]byte(document), &square); err != nil {
		return domain.Square{}, fmt.Errorf("unmarshal square %s: %w", key, err)
	}
	return square, nil
}

// PutSquare upserts the full square document.
func (s *Store) PutSquare(ctx context.Context, square domain.Square) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key := squareKey(square.ID)
	if key == "" {
		return fmt.Errorf("square id is required")
	}

	document, err := json.Marshal(square)
	if err != nil {
		return fmt.Errorf("marshal square: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO map_squares (square_id, document, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (square_id) DO UPDATE SET
		     document = excluded.document,
		     updated_at = excluded.updated_at`,
		key,
		string(document),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put square: %w", err)
	}
	return nil
}

// mutateSquare loads, mutates and writes back a square document inside one
// transaction. The mutate callback reports whether the document changed.
func (s *Store) mutateSquare(ctx context.Context, squareID string, mutate func(*domain.Square) (bool, error)) (storage.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.UpdateResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UpdateResult{}, fmt.Errorf("storage is not configured")
	}
	key := squareKey(squareID)
	if key == "" {
		return storage.UpdateResult{}, fmt.Errorf("square id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.UpdateResult{}, fmt.Errorf("begin square update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT document FROM map_squares WHERE square_id = ?`, key)
	var document string
	if err := row.Scan(&document); err != nil {
		if err == sql.ErrNoRows {
			return storage.UpdateResult{}, nil
		}
		return storage.UpdateResult{}, fmt.Errorf("load square %s: %w", key, err)
	}

	var square domain.Square
	if err := json.Unmarshal([]byte(document), &square); err != nil {
		return storage.UpdateResult{}, fmt.Errorf("unmarshal square %s: %w", key, err)
	}

	modified, err := mutate(&square)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if !modified {
		return storage.UpdateResult{Matched: true}, nil
	}

	updated, err := json.Marshal(square)
	if err != nil {
		return storage.UpdateResult{}, fmt.Errorf("marshal square %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE map_squares SET document = ?, updated_at = ? WHERE square_id = ?`,
		string(updated), time.Now().UTC().UnixMilli(), key,
	); err != nil {
		return storage.UpdateResult{}, fmt.Errorf("update square %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.UpdateResult{}, fmt.Errorf("commit square update: %w", err)
	}
	return storage.UpdateResult{Matched: true, Modified: true}, nil
}

// UpdateQuadrantStatus writes a quadrant status transition through to the
// matched square. A missing square reports Matched false; a quadrant already
// in the target state, or one another expedition has advanced past it,
// reports Matched without Modified. Statuses only move forward here; the
// failure rollback goes through RollbackQuadrants.
func (s *Store) UpdateQuadrantStatus(ctx context.Context, squareID, quadrantID string, status domain.QuadrantStatus) (storage.UpdateResult, error) {
	return s.mutateSquare(ctx, squareID, func(square *domain.Square) (bool, error) {
		q := square.QuadrantByID(quadrantID)
		if q == nil || q.Status == status || !q.Status.CanTransition(status) {
			return false, nil
		}
		q.Status = status
		return true, nil
	})
}

// AddDiscovery appends a discovery to the matched quadrant.
func (s *Store) AddDiscovery(ctx context.Context, squareID, quadrantID string, discovery domain.Discovery) (storage.UpdateResult, error) {
	return s.mutateSquare(ctx, squareID, func(square *domain.Square) (bool, error) {
		q := square.QuadrantByID(quadrantID)
		if q == nil {
			return false, nil
		}
		q.Discoveries = append(q.Discoveries, discovery)
		return true, nil
	})
}

// RollbackQuadrants reverts the listed quadrants to unexplored. Squares the
// store has no record of are skipped; the rollback targets only writes this
// store previously accepted.
func (s *Store) RollbackQuadrants(ctx context.Context, refs []domain.QuadrantRef) error {
	bySquare := make(map[string][]string)
	for _, ref := range refs {
		key := squareKey(ref.Square)
		bySquare[key] = append(bySquare[key], ref.Quadrant)
	}
	for square, quadrants := range bySquare {
		_, err := s.mutateSquare(ctx, square, func(doc *domain.Square) (bool, error) {
			doc.Rollback(quadrants)
			return true, nil
		})
		if err != nil {
			return fmt.Errorf("rollback square %s: %w", square, err)
		}
	}
	return nil
}
