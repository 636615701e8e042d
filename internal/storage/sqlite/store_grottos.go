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

// PutGrotto upserts a grotto trial record keyed by square, quadrant and
// expedition.
func (s *Store) PutGrotto(ctx context.Context, grotto domain.Grotto) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(grotto.Square) == "" || strings.TrimSpace(grotto.Quadrant) == "" {
		return fmt.Errorf("grotto location is required")
	}
	if strings.TrimSpace(grotto.ExpeditionID) == "" {
		return fmt.Errorf("expedition id is required")
	}

	document, err := json.Marshal(grotto)
	if err != nil {
		return fmt.Errorf("marshal grotto: %w", err)
	}

	sealed := 0
	if grotto.Sealed {
		sealed = 1
	}
	completed := 0
	if grotto.Completed() {
		completed = 1
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO grottos (square_id, quadrant_id, expedition_id, sealed, completed, document, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (square_id, quadrant_id, expedition_id) DO UPDATE SET
		     sealed = excluded.sealed,
		     completed = excluded.completed,
		     document = excluded.document,
		     updated_at = excluded.updated_at`,
		squareKey(grotto.Square),
		strings.ToUpper(strings.TrimSpace(grotto.Quadrant)),
		grotto.ExpeditionID,
		sealed,
		completed,
		string(document),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put grotto: %w", err)
	}
	return nil
}

// GetGrotto loads a grotto trial record by its full key.
func (s *Store) GetGrotto(ctx context.Context, square, quadrant, expeditionID string) (domain.Grotto, error) {
	if err := ctx.Err(); err != nil {
		return domain.Grotto{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Grotto{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT document FROM grottos
		 WHERE square_id = ? AND quadrant_id = ? AND expedition_id = ?`,
		squareKey(square),
		strings.ToUpper(strings.TrimSpace(quadrant)),
		expeditionID,
	)
	return scanGrotto(row)
}

// GetUnsealed returns the square's unsealed, uncompleted grotto for the
// expedition. At most one exists per square per run.
func (s *Store) GetUnsealed(ctx context.Context, square, expeditionID string) (domain.Grotto, error) {
	if err := ctx.Err(); err != nil {
		return domain.Grotto{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Grotto{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT document FROM grottos
		 WHERE square_id = ? AND expedition_id = ? AND sealed = 0 AND completed = 0
		 LIMIT 1`,
		squareKey(square),
		expeditionID,
	)
	return scanGrotto(row)
}

// Grottos returns the grotto store view over the shared connection. The
// wrapper exists because the grotto interface reuses the Put and Get names
// the expedition store claims on Store itself.
func (s *Store) Grottos() storage.GrottoStore {
	return grottoStore{store: s}
}

type grottoStore struct {
	store *Store
}

func (g grottoStore) Put(ctx context.Context, grotto domain.Grotto) error {
	return g.store.PutGrotto(ctx, grotto)
}

func (g grottoStore) Get(ctx context.Context, square, quadrant, expeditionID string) (domain.Grotto, error) {
	return g.store.GetGrotto(ctx, square, quadrant, expeditionID)
}

func (g grottoStore) GetUnsealed(ctx context.Context, square, expeditionID string) (domain.Grotto, error) {
	return g.store.GetUnsealed(ctx, square, expeditionID)
}

var _ storage.GrottoStore = grottoStore{}

func scanGrotto(row *sql.Row) (domain.Grotto, error) {
	var document string
	if err := row.Scan(&document); err != nil {
		if err == sql.ErrNoRows {
			return domain.Grotto{}, storage.ErrNotFound
		}
		return domain.Grotto{}, fmt.Errorf("get grotto: %w", err)
	}
	var grotto domain.Grotto
	if err := json.Unmarshal([]byte(document), &grotto); err != nil {
		return domain.Grotto{}, fmt.Errorf("unmarshal grotto: %w", err)
	}
	return grotto, nil
}
