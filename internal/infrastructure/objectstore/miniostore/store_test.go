package miniostore

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

type fakeAPI struct {
	policy    *minio.PostPolicy
	removed   []string
	removeErr error
	exists    bool
	made      bool
}

func (f *fakeAPI) PresignedPostPolicy(_ context.Context, p *minio.PostPolicy) (*url.URL, map[string]string, error) {
	f.policy = p
	u, _ := url.Parse("https://store.example.com/uploads-bucket")
	return u, map[string]string{"key": "k", "policy": "p"}, nil
}

func (f *fakeAPI) RemoveObject(_ context.Context, bucket, object string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, bucket+"/"+object)
	return f.removeErr
}

func (f *fakeAPI) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeAPI) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made = true
	return nil
}

func newTestStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	locator, err := domain.NewLocator("public.blob.store.example.com")
	if err != nil {
		t.Fatalf("NewLocator() error = %v", err)
	}
	s := newStore(api, "uploads-bucket", "us-east-1", locator)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestIssueUploadGrantBuildsPostPolicy(t *testing.T) {
	api := &fakeAPI{}
	s := newTestStore(t, api)

	grant, err := s.IssueUploadGrant(context.Background(), domain.ObjectGrant{
		Key: "uploads/abc-x.png", ContentType: "image/png", MaxSizeBytes: 1024, Expiry: 10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("IssueUploadGrant() error = %v", err)
	}
	if grant.Method != "POST" || grant.UploadURL != "https://store.example.com/uploads-bucket" {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if grant.Fields["policy"] != "p" {
		t.Fatalf("expected form fields, got %v", grant.Fields)
	}
	if !grant.ExpiresAt.Equal(time.Date(2025, 1, 1, 0, 10, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %v", grant.ExpiresAt)
	}
	if api.policy == nil {
		t.Fatalf("expected policy to be presigned")
	}
}

func TestDeleteByReferenceRemovesResolvedKey(t *testing.T) {
	api := &fakeAPI{}
	s := newTestStore(t, api)

	if err := s.DeleteByReference(context.Background(), "https://abc.public.blob.store.example.com/uploads/a.png"); err != nil {
		t.Fatalf("DeleteByReference() error = %v", err)
	}
	if len(api.removed) != 1 || api.removed[0] != "uploads-bucket/uploads/a.png" {
		t.Fatalf("unexpected removals %v", api.removed)
	}

	if err := s.DeleteByReference(context.Background(), "https://evil.example.com/a.png"); err == nil {
		t.Fatalf("expected error for foreign reference")
	}
	if len(api.removed) != 1 {
		t.Fatalf("foreign reference must not reach the store")
	}

	api.removeErr = errors.New("denied")
	if err := s.DeleteByReference(context.Background(), "https://abc.public.blob.store.example.com/b.png"); err == nil {
		t.Fatalf("expected remove error")
	}
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	api := &fakeAPI{}
	s := newTestStore(t, api)
	if err := s.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if !api.made {
		t.Fatalf("expected bucket creation")
	}
}
