package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
)

const defaultCompensationTimeout = 10 * time.Second

type ConfirmUploadUseCase struct {
	uploads             ports.UploadStore
	objects             ports.ObjectStore
	locator             *domain.Locator
	observer            ports.WorkflowObserver
	compensationTimeout time.Duration
	now                 func() time.Time
}

func NewConfirmUploadUseCase(
	uploads ports.UploadStore,
	objects ports.ObjectStore,
	locator *domain.Locator,
	observer ports.WorkflowObserver,
	compensationTimeout time.Duration,
) *ConfirmUploadUseCase {
	if compensationTimeout <= 0 {
		compensationTimeout = defaultCompensationTimeout
	}
	return &ConfirmUploadUseCase{
		uploads:             uploads,
		objects:             objects,
		locator:             locator,
		observer:            observerOrNoop(observer),
		compensationTimeout: compensationTimeout,
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

// ConfirmUpload persists the ownership record for a completed direct upload.
// When persistence fails the stored object is deleted once, best-effort, and the
// persistence failure is returned regardless of how the delete went.
func (uc *ConfirmUploadUseCase) ConfirmUpload(ctx context.Context, principal, imageRef string) (*domain.Upload, error) {
	const op = "confirm upload"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	if err := uc.locator.Validate(imageRef); err != nil {
		return nil, domain.NewValidationError(op, domain.FieldError{Field: "imageUrl", Message: err.Error()})
	}

	ctx, span := startSpan(ctx, "upload.confirm", attribute.String("upload.principal", principal))
	now := uc.now()
	upload := &domain.Upload{
		ID:        uuid.NewString(),
		UserID:    principal,
		ImageURL:  imageRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(attribute.String("upload.id", upload.ID))

	if err := uc.uploads.CreateUpload(ctx, upload); err != nil {
		uc.compensate(ctx, imageRef, err)
		err = domain.WrapError(domain.ErrPersistence, op, err)
		endSpan(span, err)
		return nil, err
	}
	endSpan(span, nil)
	return upload, nil
}

func (uc *ConfirmUploadUseCase) compensate(ctx context.Context, imageRef string, cause error) {
	// The caller's context may already be cancelled; cleanup still runs.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.compensationTimeout)
	defer cancel()

	deleteErr := uc.objects.DeleteByReference(cleanupCtx, imageRef)
	uc.observer.CompensationAttempted(ctx, imageRef, cause, deleteErr)
	if deleteErr != nil {
		slog.WarnContext(ctx, "upload_compensation_failed",
			"image_url", imageRef,
			"cause", cause.Error(),
			"delete_error", deleteErr.Error(),
		)
		return
	}
	slog.InfoContext(ctx, "upload_compensated", "image_url", imageRef, "cause", cause.Error())
}
