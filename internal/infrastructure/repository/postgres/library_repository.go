package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

type LibraryRepository struct {
	db *sql.DB
}

func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

const libraryColumns = `id, user_id, upload_id, question, solution, created_at, updated_at`

func (r *LibraryRepository) CreateEntry(ctx context.Context, e *domain.LibraryEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO library_entries (`+libraryColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, e.ID, e.UserID, e.UploadID, e.Question, e.Solution, e.CreatedAt, e.UpdatedAt)
	return classify("insert library entry", err)
}

func (r *LibraryRepository) ListEntries(ctx context.Context, userID string) ([]domain.LibraryEntry, error) {
	return r.list(ctx, "list library entries", `
SELECT `+libraryColumns+`
FROM library_entries
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
`, userID)
}

func (r *LibraryRepository) ListEntriesByUpload(ctx context.Context, userID, uploadID string) ([]domain.LibraryEntry, error) {
	return r.list(ctx, "list library entries by upload", `
SELECT `+libraryColumns+`
FROM library_entries
WHERE user_id = $1 AND upload_id = $2
ORDER BY created_at DESC, id DESC
`, userID, uploadID)
}

func (r *LibraryRepository) GetEntry(ctx context.Context, userID, id string) (*domain.LibraryEntry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+libraryColumns+`
FROM library_entries
WHERE id = $1 AND user_id = $2
`, id, userID)
	e, err := scanEntry(row)
	if err != nil {
		return nil, classify("get library entry", err)
	}
	return e, nil
}

func (r *LibraryRepository) UpdateEntry(ctx context.Context, e *domain.LibraryEntry) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE library_entries
SET question = $3, solution = $4, updated_at = $5
WHERE id = $1 AND user_id = $2
`, e.ID, e.UserID, e.Question, e.Solution, e.UpdatedAt)
	if err != nil {
		return classify("update library entry", err)
	}
	return requireAffected("update library entry", res)
}

func (r *LibraryRepository) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM library_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return classify("delete library entry", err)
	}
	return requireAffected("delete library entry", res)
}

func (r *LibraryRepository) list(ctx context.Context, operation, query string, args ...any) ([]domain.LibraryEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(operation, err)
	}
	defer rows.Close()

	out := make([]domain.LibraryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", operation, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", operation, err)
	}
	return out, nil
}

func scanEntry(row scanner) (*domain.LibraryEntry, error) {
	var e domain.LibraryEntry
	if err := row.Scan(&e.ID, &e.UserID, &e.UploadID, &e.Question, &e.Solution, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
