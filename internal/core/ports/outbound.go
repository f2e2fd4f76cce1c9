package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

// UploadStore persists upload records.
type UploadStore interface {
	CreateUpload(ctx context.Context, upload *domain.Upload) error
	GetUpload(ctx context.Context, id string) (*domain.Upload, error)
	ListUploadsWithResults(ctx context.Context, userID string) ([]domain.UploadWithResult, error)
	// UpdateImageURL drops the recognition result when the image reference changes.
	UpdateImageURL(ctx context.Context, userID, id, imageURL string, updatedAt time.Time) (*domain.Upload, error)
	DeleteUpload(ctx context.Context, userID, id string) error
}

// RecognitionStore persists recognition results keyed by upload id.
// CreateResult reports an existing row as domain.ErrConflict.
type RecognitionStore interface {
	CreateResult(ctx context.Context, result *domain.RecognitionResult) error
	GetResult(ctx context.Context, id string) (*domain.RecognitionResult, error)
	ListResults(ctx context.Context, userID string) ([]domain.RecognitionResult, error)
}

// LibraryStore persists error library entries; every query is owner-scoped.
type LibraryStore interface {
	CreateEntry(ctx context.Context, entry *domain.LibraryEntry) error
	ListEntries(ctx context.Context, userID string) ([]domain.LibraryEntry, error)
	ListEntriesByUpload(ctx context.Context, userID, uploadID string) ([]domain.LibraryEntry, error)
	GetEntry(ctx context.Context, userID, id string) (*domain.LibraryEntry, error)
	UpdateEntry(ctx context.Context, entry *domain.LibraryEntry) error
	DeleteEntry(ctx context.Context, userID, id string) error
}

// ObjectStore issues direct-upload grants and deletes objects by public reference.
type ObjectStore interface {
	IssueUploadGrant(ctx context.Context, grant domain.ObjectGrant) (*domain.UploadGrant, error)
	DeleteByReference(ctx context.Context, imageRef string) error
}

// RecognitionEngine extracts question and solution text from an image.
type RecognitionEngine interface {
	Recognize(ctx context.Context, imageRef string) (domain.Recognition, error)
}

// TokenVerifier resolves a bearer token to a principal identifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// LibraryExporter renders library entries into a downloadable document.
type LibraryExporter interface {
	ExportEntries(w io.Writer, entries []domain.LibraryEntry) error
}

// WorkflowObserver receives out-of-band diagnostics from the upload workflows.
// It never influences a workflow's returned result.
type WorkflowObserver interface {
	CompensationAttempted(ctx context.Context, imageRef string, cause, deleteErr error)
	RecognitionFinished(ctx context.Context, uploadID, outcome string)
}
