package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

const (
	testDomain = "public.blob.store.example.com"
	testRef    = "https://abc.public.blob.store.example.com/x.png"
)

func mustLocator() *domain.Locator {
	l, err := domain.NewLocator(testDomain)
	if err != nil {
		panic(err)
	}
	return l
}

type uploadStoreSpy struct {
	mu        sync.Mutex
	calls     int
	createErr error
	uploads   map[string]domain.Upload
}

func newUploadStoreSpy() *uploadStoreSpy {
	return &uploadStoreSpy{uploads: map[string]domain.Upload{}}
}

func (s *uploadStoreSpy) CreateUpload(_ context.Context, u *domain.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.createErr != nil {
		return s.createErr
	}
	s.uploads[u.ID] = *u
	return nil
}

func (s *uploadStoreSpy) GetUpload(_ context.Context, id string) (*domain.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	u, ok := s.uploads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *uploadStoreSpy) ListUploadsWithResults(context.Context, string) ([]domain.UploadWithResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil, nil
}

func (s *uploadStoreSpy) UpdateImageURL(_ context.Context, _, id, ref string, at time.Time) (*domain.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	u := s.uploads[id]
	u.ImageURL = ref
	u.UpdatedAt = at
	s.uploads[id] = u
	return &u, nil
}

func (s *uploadStoreSpy) DeleteUpload(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	delete(s.uploads, id)
	return nil
}

func (s *uploadStoreSpy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type objectStoreSpy struct {
	mu         sync.Mutex
	deleted    []string
	deleteErr  error
	ctxErr     error
	grant      *domain.UploadGrant
	grantErr   error
	lastGrant  domain.ObjectGrant
	grantCalls int
}

func (s *objectStoreSpy) IssueUploadGrant(_ context.Context, g domain.ObjectGrant) (*domain.UploadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grantCalls++
	s.lastGrant = g
	if s.grantErr != nil {
		return nil, s.grantErr
	}
	if s.grant != nil {
		out := *s.grant
		return &out, nil
	}
	return &domain.UploadGrant{Method: "POST", UploadURL: "https://store.example.com/bucket"}, nil
}

func (s *objectStoreSpy) DeleteByReference(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErr = ctx.Err()
	s.deleted = append(s.deleted, ref)
	return s.deleteErr
}

type engineSpy struct {
	mu     sync.Mutex
	calls  int
	result domain.Recognition
	err    error
}

func (e *engineSpy) Recognize(context.Context, string) (domain.Recognition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.result, e.err
}

func (e *engineSpy) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type observerSpy struct {
	mu            sync.Mutex
	compensations []error
	outcomes      []string
}

func (o *observerSpy) CompensationAttempted(_ context.Context, _ string, _ error, deleteErr error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.compensations = append(o.compensations, deleteErr)
}

func (o *observerSpy) RecognitionFinished(_ context.Context, _ string, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
