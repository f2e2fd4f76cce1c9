package ports

import (
	"context"
	"io"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

// UploadGrantIssuer is the inbound contract for direct-to-store upload grants.
type UploadGrantIssuer interface {
	IssueGrant(ctx context.Context, principal string, req domain.GrantRequest) (*domain.UploadGrant, error)
}

// UploadConfirmer records a completed direct upload for its principal.
type UploadConfirmer interface {
	ConfirmUpload(ctx context.Context, principal, imageRef string) (*domain.Upload, error)
}

// UploadManager is the owner-scoped read/update/delete surface for uploads.
type UploadManager interface {
	ListUploads(ctx context.Context, principal string) ([]domain.UploadWithResult, error)
	GetUpload(ctx context.Context, principal, uploadID string) (*domain.UploadWithResult, error)
	UpdateImage(ctx context.Context, principal, uploadID, imageRef string) (*domain.Upload, error)
	DeleteUpload(ctx context.Context, principal, uploadID string) error
}

// Recognizer runs recognition for an owned upload, at most once per upload.
type Recognizer interface {
	Recognize(ctx context.Context, principal, uploadID, imageRef string) (*domain.RecognitionOutcome, error)
	ListResults(ctx context.Context, principal string) ([]domain.RecognitionResult, error)
}

// ErrorLibrary manages the principal's curated copies of recognized questions.
type ErrorLibrary interface {
	CreateEntry(ctx context.Context, principal, uploadID, question, solution string) (*domain.LibraryEntry, error)
	ListEntries(ctx context.Context, principal string) ([]domain.LibraryEntry, error)
	ListEntriesByUpload(ctx context.Context, principal, uploadID string) ([]domain.LibraryEntry, error)
	GetEntry(ctx context.Context, principal, entryID string) (*domain.LibraryEntry, error)
	UpdateEntry(ctx context.Context, principal, entryID string, patch domain.LibraryPatch) (*domain.LibraryEntry, error)
	DeleteEntry(ctx context.Context, principal, entryID string) error
	Export(ctx context.Context, principal string, w io.Writer) error
}
