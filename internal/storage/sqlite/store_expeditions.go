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

// Put upserts the full expedition document.
func (s *Store) Put(ctx context.Context, exp domain.Expedition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(exp.ID) == "" {
		return fmt.Errorf("expedition id is required")
	}

	document, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal expedition: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO expeditions (id, status, document, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     status = excluded.status,
		     document = excluded.document,
		     updated_at = excluded.updated_at`,
		exp.ID,
		string(exp.Status),
		string(document),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put expedition: %w", err)
	}
	return nil
}

// Get loads an expedition document by id.
func (s *Store) Get(ctx context.Context, id string) (domain.Expedition, error) {
	if err := ctx.Err(); err != nil {
		return domain.Expedition{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Expedition{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return domain.Expedition{}, fmt.Errorf("expedition id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT document FROM expeditions WHERE id = ?`, id)

	var document string
	if err := row.Scan(&document); err != nil {
		if err == sql.ErrNoRows {
			return domain.Expedition{}, storage.ErrNotFound
		}
		return domain.Expedition{}, fmt.Errorf("get expedition: %w", err)
	}

	var exp domain.Expedition
	if err := json.Unmarshal([]byte(document), &exp); err != nil {
		return domain.Expedition{}, fmt.Errorf("unmarshal expedition %s: %w", id, err)
	}
	return exp, nil
}

// ListActive returns every started expedition.
func (s *Store) ListActive(ctx context.Context) ([]domain.Expedition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT document FROM expeditions WHERE status = ? ORDER BY id`,
		string(domain.StatusStarted))
	if err != nil {
		return nil, fmt.Errorf("list active expeditions: %w", err)
	}
	defer rows.Close()

	var active []domain.Expedition
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scan expedition: %w", err)
		}
		var exp domain.Expedition
		if err := json.Unmarshal([]byte(document), &exp); err != nil {
			return nil, fmt.Errorf("unmarshal expedition: %w", err)
		}
		active = append(active, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active expeditions: %w", err)
	}
	return active, nil
}
