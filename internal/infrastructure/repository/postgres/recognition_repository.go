package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

// RecognitionRepository stores results keyed by upload id. The primary key
// doubles as the once-per-upload guard: a second insert reports ErrConflict.
type RecognitionRepository struct {
	db *sql.DB
}

func NewRecognitionRepository(db *sql.DB) *RecognitionRepository {
	return &RecognitionRepository{db: db}
}

func (r *RecognitionRepository) CreateResult(ctx context.Context, res *domain.RecognitionResult) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO recognition_results (id, question, solution, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
`, res.ID, res.Question, res.Solution, res.CreatedAt, res.UpdatedAt)
	return classify("insert recognition result", err)
}

func (r *RecognitionRepository) GetResult(ctx context.Context, id string) (*domain.RecognitionResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, question, solution, created_at, updated_at
FROM recognition_results
WHERE id = $1
`, id)
	res, err := scanResult(row)
	if err != nil {
		return nil, classify("get recognition result", err)
	}
	return res, nil
}

func (r *RecognitionRepository) ListResults(ctx context.Context, userID string) ([]domain.RecognitionResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT r.id, r.question, r.solution, r.created_at, r.updated_at
FROM recognition_results r
JOIN uploads u ON u.id = r.id
WHERE u.user_id = $1
ORDER BY r.created_at DESC, r.id DESC
`, userID)
	if err != nil {
		return nil, classify("list recognition results", err)
	}
	defer rows.Close()

	out := make([]domain.RecognitionResult, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recognition result: %w", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recognition results: %w", err)
	}
	return out, nil
}

func scanResult(row scanner) (*domain.RecognitionResult, error) {
	var res domain.RecognitionResult
	if err := row.Scan(&res.ID, &res.Question, &res.Solution, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}
