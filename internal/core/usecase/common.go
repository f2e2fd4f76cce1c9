package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
)

var tracer = otel.Tracer("github.com/kirillkom/gapdrill/internal/core/usecase")

func requirePrincipal(operation, principal string) error {
	if strings.TrimSpace(principal) == "" {
		return domain.WrapError(domain.ErrUnauthenticated, operation, errors.New("principal is required"))
	}
	return nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// loadOwnedUpload resolves an upload and enforces that principal owns it.
// Existence is checked first, so foreign uploads report Forbidden, not NotFound.
func loadOwnedUpload(ctx context.Context, store ports.UploadStore, operation, principal, uploadID string) (*domain.Upload, error) {
	upload, err := store.GetUpload(ctx, uploadID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrNotFound, operation, errors.New("upload not found"))
		}
		return nil, domain.WrapError(domain.ErrPersistence, operation, err)
	}
	if upload.UserID != principal {
		return nil, domain.WrapError(domain.ErrForbidden, operation, errors.New("upload belongs to another user"))
	}
	return upload, nil
}

type noopObserver struct{}

func (noopObserver) CompensationAttempted(context.Context, string, error, error) {}
func (noopObserver) RecognitionFinished(context.Context, string, string)         {}

func observerOrNoop(o ports.WorkflowObserver) ports.WorkflowObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
