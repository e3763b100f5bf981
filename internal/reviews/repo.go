package reviews

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"toolshed/pkg/database"
	"toolshed/pkg/models"
)

// RecentLimit is both the default and the ceiling for Recent.
const RecentLimit = 50

// StorageError is returned for every failed database operation so callers
// can tell a backend fault apart from bad input.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("review store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Init creates the reviews table if it does not exist yet.
func (r *Repo) Init(ctx context.Context) error {
	if err := database.Migrate(ctx, r.DB); err != nil {
		return &StorageError{Op: "init", Err: err}
	}
	return nil
}

// Append inserts one review. username and text must already be sanitized
// and length checked.
func (r *Repo) Append(ctx context.Context, username, text string, ts time.Time) (models.Review, error) {
	ts = ts.UTC().Truncate(time.Second)

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO reviews (username, review_text, timestamp)
		VALUES (?, ?, ?)
	`, username, text, ts)
	if err != nil {
		return models.Review{}, &StorageError{Op: "append", Err: fmt.Errorf("insert review: %w", err)}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Review{}, &StorageError{Op: "append", Err: fmt.Errorf("last insert id: %w", err)}
	}

	return models.Review{ID: id, Username: username, Text: text, Timestamp: ts}, nil
}

// Recent returns up to limit reviews, newest first. Reviews sharing a
// timestamp come back in reverse insertion order.
func (r *Repo) Recent(ctx context.Context, limit int) ([]models.Review, error) {
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, username, review_text, timestamp
		FROM reviews
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, &StorageError{Op: "recent", Err: fmt.Errorf("list reviews: %w", err)}
	}
	defer rows.Close()

	out := make([]models.Review, 0, limit)
	for rows.Next() {
		var review models.Review
		var ts time.Time
		if err := rows.Scan(&review.ID, &review.Username, &review.Text, &ts); err != nil {
			return nil, &StorageError{Op: "recent", Err: fmt.Errorf("scan review row: %w", err)}
		}
		review.Timestamp = ts.UTC()
		out = append(out, review)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "recent", Err: fmt.Errorf("rows err: %w", err)}
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&n); err != nil {
		return 0, &StorageError{Op: "count", Err: fmt.Errorf("count reviews: %w", err)}
	}
	return n, nil
}
