package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
)

const defaultRecognitionTimeout = 60 * time.Second

type RecognizeUseCase struct {
	uploads  ports.UploadStore
	results  ports.RecognitionStore
	engine   ports.RecognitionEngine
	locator  *domain.Locator
	observer ports.WorkflowObserver
	timeout  time.Duration
	now      func() time.Time
}

func NewRecognizeUseCase(
	uploads ports.UploadStore,
	results ports.RecognitionStore,
	engine ports.RecognitionEngine,
	locator *domain.Locator,
	observer ports.WorkflowObserver,
	timeout time.Duration,
) *RecognizeUseCase {
	if timeout <= 0 {
		timeout = defaultRecognitionTimeout
	}
	return &RecognizeUseCase{
		uploads:  uploads,
		results:  results,
		engine:   engine,
		locator:  locator,
		observer: observerOrNoop(observer),
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Recognize returns the stored result for uploadID, invoking the engine only
// when none exists yet. A concurrent insert that wins the race is returned as cached.
func (uc *RecognizeUseCase) Recognize(ctx context.Context, principal, uploadID, imageRef string) (*domain.RecognitionOutcome, error) {
	const op = "recognize"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	verr := domain.NewValidationError(op)
	if !isUUID(uploadID) {
		verr.Add("uploadId", "must be a UUID")
	}
	if err := uc.locator.Validate(imageRef); err != nil {
		verr.Add("imageUrl", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "upload.recognize", attribute.String("upload.id", uploadID))

	outcome, label, err := uc.recognize(ctx, principal, uploadID, imageRef)
	if label != "" {
		span.SetAttributes(attribute.String("recognition.outcome", label))
		uc.observer.RecognitionFinished(ctx, uploadID, label)
	}
	endSpan(span, err)
	return outcome, err
}

func (uc *RecognizeUseCase) recognize(ctx context.Context, principal, uploadID, imageRef string) (*domain.RecognitionOutcome, string, error) {
	const op = "recognize"
	upload, err := loadOwnedUpload(ctx, uc.uploads, op, principal, uploadID)
	if err != nil {
		return nil, "", err
	}
	// The engine only ever sees the image the upload was confirmed with.
	if upload.ImageURL != imageRef {
		return nil, "", domain.NewValidationError(op, domain.FieldError{Field: "imageUrl", Message: "does not match the upload"})
	}

	existing, err := uc.results.GetResult(ctx, uploadID)
	switch {
	case err == nil:
		return cachedOutcome(existing), domain.OutcomeCached, nil
	case !domain.IsKind(err, domain.ErrNotFound):
		return nil, domain.OutcomePersistFailed, domain.WrapError(domain.ErrPersistence, op, err)
	}

	recognition, err := uc.callEngine(ctx, imageRef)
	if err != nil {
		return nil, domain.OutcomeEngineFailed, err
	}

	now := uc.now()
	result := &domain.RecognitionResult{
		ID:        uploadID,
		Question:  recognition.Question,
		Solution:  recognition.Solution,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.results.CreateResult(ctx, result); err != nil {
		switch {
		case domain.IsKind(err, domain.ErrConflict):
			winner, readErr := uc.results.GetResult(ctx, uploadID)
			if readErr != nil {
				return nil, domain.OutcomePersistFailed, domain.WrapError(domain.ErrPersistence, op, readErr)
			}
			return cachedOutcome(winner), domain.OutcomeRaceResolved, nil
		case domain.IsKind(err, domain.ErrNotFound):
			// The upload was deleted between the ownership check and the insert.
			return nil, domain.OutcomePersistFailed, domain.WrapError(domain.ErrNotFound, op, errors.New("upload not found"))
		default:
			return nil, domain.OutcomePersistFailed, domain.WrapError(domain.ErrPersistence, op, err)
		}
	}

	return &domain.RecognitionOutcome{Recognition: recognition, Cached: false}, domain.OutcomeFresh, nil
}

func (uc *RecognizeUseCase) callEngine(ctx context.Context, imageRef string) (domain.Recognition, error) {
	const op = "recognition engine"
	engineCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	recognition, err := uc.engine.Recognize(engineCtx, imageRef)
	if err != nil {
		if domain.IsKind(err, domain.ErrUpstream) {
			return domain.Recognition{}, fmt.Errorf("%s: %w", op, err)
		}
		return domain.Recognition{}, domain.WrapError(domain.ErrUpstream, op, err)
	}
	if err := checkRecognition(recognition); err != nil {
		return domain.Recognition{}, domain.WrapError(domain.ErrUpstream, op, err)
	}
	return recognition, nil
}

func checkRecognition(r domain.Recognition) error {
	switch {
	case strings.TrimSpace(r.Question) == "":
		return errors.New("empty question in engine output")
	case strings.TrimSpace(r.Solution) == "":
		return errors.New("empty solution in engine output")
	case utf8.RuneCountInString(r.Question) > domain.MaxQuestionLength:
		return fmt.Errorf("question exceeds %d characters", domain.MaxQuestionLength)
	case utf8.RuneCountInString(r.Solution) > domain.MaxSolutionLength:
		return fmt.Errorf("solution exceeds %d characters", domain.MaxSolutionLength)
	}
	return nil
}

func cachedOutcome(r *domain.RecognitionResult) *domain.RecognitionOutcome {
	return &domain.RecognitionOutcome{
		Recognition: domain.Recognition{Question: r.Question, Solution: r.Solution},
		Cached:      true,
	}
}

func (uc *RecognizeUseCase) ListResults(ctx context.Context, principal string) ([]domain.RecognitionResult, error) {
	const op = "list recognition results"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	results, err := uc.results.ListResults(ctx, principal)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return results, nil
}
