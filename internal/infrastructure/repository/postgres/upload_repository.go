package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

type UploadRepository struct {
	db *sql.DB
}

func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) CreateUpload(ctx context.Context, u *domain.Upload) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO uploads (id, user_id, image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
`, u.ID, u.UserID, u.ImageURL, u.CreatedAt, u.UpdatedAt)
	return classify("insert upload", err)
}

func (r *UploadRepository) GetUpload(ctx context.Context, id string) (*domain.Upload, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, image_url, created_at, updated_at
FROM uploads
WHERE id = $1
`, id)
	u, err := scanUpload(row)
	if err != nil {
		return nil, classify("get upload", err)
	}
	return u, nil
}

func (r *UploadRepository) ListUploadsWithResults(ctx context.Context, userID string) ([]domain.UploadWithResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT u.id, u.user_id, u.image_url, u.created_at, u.updated_at,
	r.id, r.question, r.solution, r.created_at, r.updated_at
FROM uploads u
LEFT JOIN recognition_results r ON r.id = u.id
WHERE u.user_id = $1
ORDER BY u.created_at DESC, u.id DESC
`, userID)
	if err != nil {
		return nil, classify("list uploads", err)
	}
	defer rows.Close()

	out := make([]domain.UploadWithResult, 0)
	for rows.Next() {
		var item domain.UploadWithResult
		var (
			resultID                     sql.NullString
			question, solution           sql.NullString
			resultCreated, resultUpdated sql.NullTime
		)
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt,
			&resultID, &question, &solution, &resultCreated, &resultUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan upload row: %w", err)
		}
		if resultID.Valid {
			item.Result = &domain.RecognitionResult{
				ID:        resultID.String,
				Question:  question.String,
				Solution:  solution.String,
				CreatedAt: resultCreated.Time,
				UpdatedAt: resultUpdated.Time,
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload rows: %w", err)
	}
	return out, nil
}

// UpdateImageURL swaps the image of an owned upload. A recognition result
// describes the old image, so it is dropped in the same transaction when the
// reference actually changes.
func (r *UploadRepository) UpdateImageURL(ctx context.Context, userID, id, imageURL string, updatedAt time.Time) (*domain.Upload, error) {
	const op = "update upload image"
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM recognition_results r
USING uploads u
WHERE r.id = u.id AND u.id = $1 AND u.user_id = $2 AND u.image_url <> $3
`, id, userID, imageURL); err != nil {
		return nil, classify(op, err)
	}

	row := tx.QueryRowContext(ctx, `
UPDATE uploads
SET image_url = $3, updated_at = $4
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, image_url, created_at, updated_at
`, id, userID, imageURL, updatedAt)
	u, err := scanUpload(row)
	if err != nil {
		return nil, classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}
	return u, nil
}

func (r *UploadRepository) DeleteUpload(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return classify("delete upload", err)
	}
	return requireAffected("delete upload", res)
}

func (r *UploadRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanUpload(row scanner) (*domain.Upload, error) {
	var u domain.Upload
	if err := row.Scan(&u.ID, &u.UserID, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
