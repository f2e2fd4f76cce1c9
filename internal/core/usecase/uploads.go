package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
)

type ManageUploadsUseCase struct {
	uploads ports.UploadStore
	results ports.RecognitionStore
	objects ports.ObjectStore
	locator *domain.Locator
	now     func() time.Time
}

func NewManageUploadsUseCase(
	uploads ports.UploadStore,
	results ports.RecognitionStore,
	objects ports.ObjectStore,
	locator *domain.Locator,
) *ManageUploadsUseCase {
	return &ManageUploadsUseCase{
		uploads: uploads,
		results: results,
		objects: objects,
		locator: locator,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ManageUploadsUseCase) ListUploads(ctx context.Context, principal string) ([]domain.UploadWithResult, error) {
	const op = "list uploads"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	items, err := uc.uploads.ListUploadsWithResults(ctx, principal)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return items, nil
}

func (uc *ManageUploadsUseCase) GetUpload(ctx context.Context, principal, uploadID string) (*domain.UploadWithResult, error) {
	const op = "get upload"
	if err := uc.checkRequest(op, principal, uploadID); err != nil {
		return nil, err
	}
	upload, err := loadOwnedUpload(ctx, uc.uploads, op, principal, uploadID)
	if err != nil {
		return nil, err
	}

	out := &domain.UploadWithResult{Upload: *upload}
	result, err := uc.results.GetResult(ctx, uploadID)
	switch {
	case err == nil:
		out.Result = result
	case !domain.IsKind(err, domain.ErrNotFound):
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return out, nil
}

// UpdateImage replaces the image reference of an owned upload. Ownership never
// changes. A new image drops the stored recognition result and the previous
// object is deleted best-effort.
func (uc *ManageUploadsUseCase) UpdateImage(ctx context.Context, principal, uploadID, imageRef string) (*domain.Upload, error) {
	const op = "update upload"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	verr := domain.NewValidationError(op)
	if !isUUID(uploadID) {
		verr.Add("id", "must be a UUID")
	}
	if err := uc.locator.Validate(imageRef); err != nil {
		verr.Add("imageUrl", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	current, err := loadOwnedUpload(ctx, uc.uploads, op, principal, uploadID)
	if err != nil {
		return nil, err
	}
	updated, err := uc.uploads.UpdateImageURL(ctx, principal, uploadID, imageRef, uc.now())
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrNotFound, op, err)
		}
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	if current.ImageURL != imageRef {
		uc.deleteObject(ctx, uploadID, current.ImageURL)
	}
	return updated, nil
}

// DeleteUpload removes the record, cascading to its result and library entries,
// then deletes the stored object. A failed object delete is logged only.
func (uc *ManageUploadsUseCase) DeleteUpload(ctx context.Context, principal, uploadID string) error {
	const op = "delete upload"
	if err := uc.checkRequest(op, principal, uploadID); err != nil {
		return err
	}
	upload, err := loadOwnedUpload(ctx, uc.uploads, op, principal, uploadID)
	if err != nil {
		return err
	}
	if err := uc.uploads.DeleteUpload(ctx, principal, uploadID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.WrapError(domain.ErrNotFound, op, err)
		}
		return domain.WrapError(domain.ErrPersistence, op, err)
	}

	uc.deleteObject(ctx, uploadID, upload.ImageURL)
	return nil
}

// deleteObject outlives the request and never fails the caller.
func (uc *ManageUploadsUseCase) deleteObject(ctx context.Context, uploadID, imageRef string) {
	if err := uc.objects.DeleteByReference(context.WithoutCancel(ctx), imageRef); err != nil {
		slog.WarnContext(ctx, "upload_object_delete_failed",
			"upload_id", uploadID,
			"image_url", imageRef,
			"error", err.Error(),
		)
	}
}

func (uc *ManageUploadsUseCase) checkRequest(op, principal, uploadID string) error {
	if err := requirePrincipal(op, principal); err != nil {
		return err
	}
	if !isUUID(uploadID) {
		return domain.NewValidationError(op, domain.FieldError{Field: "id", Message: "must be a UUID"})
	}
	return nil
}
