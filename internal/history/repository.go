// Package history persists how often each search term was looked up.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/owl/internal/database"
	"github.com/at-ishikawa/owl/internal/term"
)

// Usage is the lookup count of a term.
type Usage struct {
	Term       term.SearchTerm
	Count      int
	LastUsedAt time.Time
}

type usageRow struct {
	Term       string `db:"term"`
	UseCount   int    `db:"use_count"`
	LastUsedAt int64  `db:"last_used_at"`
}

func (row usageRow) toUsage() Usage {
	return Usage{
		Term:       term.SearchTerm(row.Term),
		Count:      row.UseCount,
		LastUsedAt: time.UnixMilli(row.LastUsedAt).UTC(),
	}
}

//go:generate mockgen -source=repository.go -destination=../mocks/history/mock_repository.go -package=mock_history

// Repository defines operations for the search history.
type Repository interface {
	RecordUsage(ctx context.Context, searchTerm term.SearchTerm, usedAt time.Time) error
	All(ctx context.Context) ([]Usage, error)
}

// DBRepository implements Repository on SQL.
type DBRepository struct {
	db *sqlx.DB
}

var _ Repository = (*DBRepository)(nil)

func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// RecordUsage increments the count of searchTerm, creating the row on first use.
func (r *DBRepository) RecordUsage(ctx context.Context, searchTerm term.SearchTerm, usedAt time.Time) error {
	return database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE search_history SET use_count = use_count + 1, last_used_at = ? WHERE term = ?",
			usedAt.UnixMilli(), string(searchTerm))
		if err != nil {
			return fmt.Errorf("update search history: %w", err)
		}
		updated, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("result.RowsAffected > %w", err)
		}
		if updated > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO search_history (term, use_count, last_used_at) VALUES (?, 1, ?)",
			string(searchTerm), usedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert search history: %w", err)
		}
		return nil
	})
}

// All returns every recorded term ordered by term.
func (r *DBRepository) All(ctx context.Context) ([]Usage, error) {
	var rows []usageRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT term, use_count, last_used_at FROM search_history ORDER BY term"); err != nil {
		return nil, fmt.Errorf("load search history: %w", err)
	}

	usages := make([]Usage, 0, len(rows))
	for _, row := range rows {
		usages = append(usages, row.toUsage())
	}
	return usages, nil
}
