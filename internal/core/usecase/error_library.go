package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
)

type ErrorLibraryUseCase struct {
	entries  ports.LibraryStore
	uploads  ports.UploadStore
	exporter ports.LibraryExporter
	now      func() time.Time
}

func NewErrorLibraryUseCase(
	entries ports.LibraryStore,
	uploads ports.UploadStore,
	exporter ports.LibraryExporter,
) *ErrorLibraryUseCase {
	return &ErrorLibraryUseCase{
		entries:  entries,
		uploads:  uploads,
		exporter: exporter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ErrorLibraryUseCase) CreateEntry(ctx context.Context, principal, uploadID, question, solution string) (*domain.LibraryEntry, error) {
	const op = "create library entry"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	verr := domain.NewValidationError(op)
	if !isUUID(uploadID) {
		verr.Add("uploadId", "must be a UUID")
	}
	checkText(verr, "question", question, domain.MaxQuestionLength)
	checkText(verr, "solution", solution, domain.MaxSolutionLength)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if _, err := loadOwnedUpload(ctx, uc.uploads, op, principal, uploadID); err != nil {
		return nil, err
	}

	now := uc.now()
	entry := &domain.LibraryEntry{
		ID:        uuid.NewString(),
		UserID:    principal,
		UploadID:  uploadID,
		Question:  question,
		Solution:  solution,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.entries.CreateEntry(ctx, entry); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrNotFound, op, errors.New("upload not found"))
		}
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return entry, nil
}

func (uc *ErrorLibraryUseCase) ListEntries(ctx context.Context, principal string) ([]domain.LibraryEntry, error) {
	const op = "list library entries"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	entries, err := uc.entries.ListEntries(ctx, principal)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return entries, nil
}

func (uc *ErrorLibraryUseCase) ListEntriesByUpload(ctx context.Context, principal, uploadID string) ([]domain.LibraryEntry, error) {
	const op = "list library entries by upload"
	if err := requirePrincipal(op, principal); err != nil {
		return nil, err
	}
	if !isUUID(uploadID) {
		return nil, domain.NewValidationError(op, domain.FieldError{Field: "id", Message: "must be a UUID"})
	}
	if _, err := loadOwnedUpload(ctx, uc.uploads, op, principal, uploadID); err != nil {
		return nil, err
	}
	entries, err := uc.entries.ListEntriesByUpload(ctx, principal, uploadID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return entries, nil
}

// GetEntry reports foreign entries as NotFound; library entries are private.
func (uc *ErrorLibraryUseCase) GetEntry(ctx context.Context, principal, entryID string) (*domain.LibraryEntry, error) {
	const op = "get library entry"
	if err := checkEntryRequest(op, principal, entryID); err != nil {
		return nil, err
	}
	return uc.loadEntry(ctx, op, principal, entryID)
}

func (uc *ErrorLibraryUseCase) UpdateEntry(ctx context.Context, principal, entryID string, patch domain.LibraryPatch) (*domain.LibraryEntry, error) {
	const op = "update library entry"
	if err := checkEntryRequest(op, principal, entryID); err != nil {
		return nil, err
	}
	verr := domain.NewValidationError(op)
	if patch.Question == nil && patch.Solution == nil {
		verr.Add("body", "question or solution is required")
	}
	if patch.Question != nil {
		checkText(verr, "question", *patch.Question, domain.MaxQuestionLength)
	}
	if patch.Solution != nil {
		checkText(verr, "solution", *patch.Solution, domain.MaxSolutionLength)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	entry, err := uc.loadEntry(ctx, op, principal, entryID)
	if err != nil {
		return nil, err
	}
	if patch.Question != nil {
		entry.Question = *patch.Question
	}
	if patch.Solution != nil {
		entry.Solution = *patch.Solution
	}
	entry.UpdatedAt = uc.now()

	if err := uc.entries.UpdateEntry(ctx, entry); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrNotFound, op, errors.New("library entry not found"))
		}
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return entry, nil
}

func (uc *ErrorLibraryUseCase) DeleteEntry(ctx context.Context, principal, entryID string) error {
	const op = "delete library entry"
	if err := checkEntryRequest(op, principal, entryID); err != nil {
		return err
	}
	if err := uc.entries.DeleteEntry(ctx, principal, entryID); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.WrapError(domain.ErrNotFound, op, errors.New("library entry not found"))
		}
		return domain.WrapError(domain.ErrPersistence, op, err)
	}
	return nil
}

// Export writes the principal's entries as a spreadsheet to w.
func (uc *ErrorLibraryUseCase) Export(ctx context.Context, principal string, w io.Writer) error {
	const op = "export library"
	entries, err := uc.ListEntries(ctx, principal)
	if err != nil {
		return err
	}
	if err := uc.exporter.ExportEntries(w, entries); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (uc *ErrorLibraryUseCase) loadEntry(ctx context.Context, op, principal, entryID string) (*domain.LibraryEntry, error) {
	entry, err := uc.entries.GetEntry(ctx, principal, entryID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrNotFound, op, errors.New("library entry not found"))
		}
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return entry, nil
}

func checkEntryRequest(op, principal, entryID string) error {
	if err := requirePrincipal(op, principal); err != nil {
		return err
	}
	if !isUUID(entryID) {
		return domain.NewValidationError(op, domain.FieldError{Field: "id", Message: "must be a UUID"})
	}
	return nil
}

func checkText(verr *domain.ValidationError, field, value string, limit int) {
	switch n := utf8.RuneCountInString(value); {
	case strings.TrimSpace(value) == "":
		verr.Add(field, "is required")
	case n > limit:
		verr.Add(field, fmt.Sprintf("must be at most %d characters", limit))
	}
}
