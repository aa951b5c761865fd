package favourites

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/owl/internal/database"
	"github.com/at-ishikawa/owl/internal/term"
)

//go:generate mockgen -source=repository.go -destination=../mocks/favourites/mock_repository.go -package=mock_favourites

// Repository defines operations for persisted favourites.
type Repository interface {
	// Insert adds record unless its term is already present, and reports whether it was added.
	Insert(ctx context.Context, record Record) (bool, error)
	Delete(ctx context.Context, searchTerm term.SearchTerm) (bool, error)
	Exists(ctx context.Context, searchTerm term.SearchTerm) (bool, error)
	List(ctx context.Context) ([]Record, error)
}

type recordRow struct {
	Term      string `db:"term"`
	CreatedAt int64  `db:"created_at"`
}

// DBRepository implements Repository on SQL.
type DBRepository struct {
	db *sqlx.DB
}

var _ Repository = (*DBRepository)(nil)

func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

func (r *DBRepository) Insert(ctx context.Context, record Record) (bool, error) {
	inserted := false
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM favourites WHERE term = ?", string(record.Term)); err != nil {
			return fmt.Errorf("find favourite: %w", err)
		}
		if count > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO favourites (term, created_at) VALUES (?, ?)",
			string(record.Term), record.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert favourite: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *DBRepository) Delete(ctx context.Context, searchTerm term.SearchTerm) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM favourites WHERE term = ?", string(searchTerm))
	if err != nil {
		return false, fmt.Errorf("delete favourite: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("result.RowsAffected > %w", err)
	}
	return deleted > 0, nil
}

func (r *DBRepository) Exists(ctx context.Context, searchTerm term.SearchTerm) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM favourites WHERE term = ?", string(searchTerm)); err != nil {
		return false, fmt.Errorf("find favourite: %w", err)
	}
	return count > 0, nil
}

// List returns favourites, most recently added first.
func (r *DBRepository) List(ctx context.Context) ([]Record, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT term, created_at FROM favourites ORDER BY created_at DESC, term"); err != nil {
		return nil, fmt.Errorf("load favourites: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			Term:      term.SearchTerm(row.Term),
			CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		})
	}
	return records, nil
}
