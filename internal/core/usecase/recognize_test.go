package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/infrastructure/repository/memory"
)

const uploadID = "0b7c2a8e-4a55-4c1e-9d8e-0f6a3c1b2d4e"

func seededStore(t *testing.T, owner string) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	now := time.Now().UTC()
	err := store.CreateUpload(context.Background(), &domain.Upload{
		ID: uploadID, UserID: owner, ImageURL: testRef, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUpload() error = %v", err)
	}
	return store
}

type resultStoreFake struct {
	*memory.Store
	createErr error
}

func (f *resultStoreFake) CreateResult(ctx context.Context, r *domain.RecognitionResult) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Store.CreateResult(ctx, r)
}

func TestRecognizeFreshThenCached(t *testing.T) {
	store := seededStore(t, "u1")
	engine := &engineSpy{result: domain.Recognition{Question: "2+2?", Solution: "4"}}
	observer := &observerSpy{}
	uc := NewRecognizeUseCase(store, store, engine, mustLocator(), observer, time.Second)

	first, err := uc.Recognize(context.Background(), "u1", uploadID, testRef)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if first.Cached || first.Question != "2+2?" || first.Solution != "4" {
		t.Fatalf("unexpected first outcome: %+v", first)
	}

	second, err := uc.Recognize(context.Background(), "u1", uploadID, testRef)
	if err != nil {
		t.Fatalf("Recognize() second error = %v", err)
	}
	if !second.Cached || second.Recognition != first.Recognition {
		t.Fatalf("expected identical cached outcome, got %+v", second)
	}
	if engine.callCount() != 1 {
		t.Fatalf("expected one engine call, got %d", engine.callCount())
	}
	if strings.Join(observer.outcomes, ",") != "fresh,cached" {
		t.Fatalf("unexpected observed outcomes %v", observer.outcomes)
	}
}

func TestRecognizeExistingResultSkipsEngine(t *testing.T) {
	store := seededStore(t, "u1")
	_ = store.CreateResult(context.Background(), &domain.RecognitionResult{ID: uploadID, Question: "stored q", Solution: "stored s"})
	engine := &engineSpy{result: domain.Recognition{Question: "other", Solution: "other"}}
	uc := NewRecognizeUseCase(store, store, engine, mustLocator(), nil, time.Second)

	got, err := uc.Recognize(context.Background(), "u1", uploadID, testRef)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if !got.Cached || got.Question != "stored q" || got.Solution != "stored s" {
		t.Fatalf("expected stored result, got %+v", got)
	}
	if engine.callCount() != 0 {
		t.Fatalf("engine must not be invoked, got %d calls", engine.callCount())
	}
}

func TestRecognizeForeignUploadIsForbidden(t *testing.T) {
	store := seededStore(t, "u1")
	engine := &engineSpy{result: domain.Recognition{Question: "q", Solution: "s"}}
	uc := NewRecognizeUseCase(store, store, engine, mustLocator(), nil, time.Second)

	_, err := uc.Recognize(context.Background(), "u2", uploadID, testRef)
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := store.GetResult(context.Background(), uploadID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected no result row, got %v", err)
	}
	if engine.callCount() != 0 {
		t.Fatalf("engine must not be invoked")
	}
}

func TestRecognizeForeignUploadWithResultIsForbidden(t *testing.T) {
	store := seededStore(t, "u1")
	_ = store.CreateResult(context.Background(), &domain.RecognitionResult{ID: uploadID, Question: "q", Solution: "s"})
	uc := NewRecognizeUseCase(store, store, &engineSpy{}, mustLocator(), nil, time.Second)

	_, err := uc.Recognize(context.Background(), "u2", uploadID, testRef)
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden before cache lookup, got %v", err)
	}
}

func TestRecognizeRejectsImageOtherThanUploads(t *testing.T) {
	store := seededStore(t, "u1")
	engine := &engineSpy{result: domain.Recognition{Question: "q", Solution: "s"}}
	uc := NewRecognizeUseCase(store, store, engine, mustLocator(), nil, time.Second)

	_, err := uc.Recognize(context.Background(), "u1", uploadID, otherRef)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if engine.callCount() != 0 {
		t.Fatalf("engine must not be invoked")
	}
	if _, err := store.GetResult(context.Background(), uploadID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected no result row, got %v", err)
	}
}

func TestRecognizeMissingUpload(t *testing.T) {
	store := memory.NewStore()
	uc := NewRecognizeUseCase(store, store, &engineSpy{}, mustLocator(), nil, time.Second)

	_, err := uc.Recognize(context.Background(), "u1", uploadID, testRef)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecognizeValidationReportsAllFieldsWithoutIO(t *testing.T) {
	uploads := newUploadStoreSpy()
	engine := &engineSpy{}
	uc := NewRecognizeUseCase(uploads, memory.NewStore(), engine, mustLocator(), nil, time.Second)

	_, err := uc.Recognize(context.Background(), "u1", "not-a-uuid", "https://evil.example.com/x.png")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := len(domain.ValidationDetails(err)); got != 2 {
		t.Fatalf("expected two field errors, got %d", got)
	}
	if uploads.callCount() != 0 || engine.callCount() != 0 {
		t.Fatalf("expected zero calls before validation passes")
	}

	if _, err := uc.Recognize(context.Background(), "", uploadID, testRef); !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestRecognizeEngineFailureIsUpstream(t *testing.T) {
	store := seededStore(t, "u1")
	engine := &engineSpy{err: errors.New("model offline")}
	observer := &observerSpy{}
	uc := NewRecognizeUseCase(store, store, engine, mustLocator(), observer, time.Second)

	_, err := uc.Recognize(context.Background(), "u1", uploadID, testRef)
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("upstream failure must be distinct from validation: %v", err)
	}
	if _, err := store.GetResult(context.Background(), uploadID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected no result row after engine failure")
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != domain.OutcomeEngineFailed {
		t.Fatalf("unexpected outcomes %v", observer.outcomes)
	}
}

func TestRecognizeEmptyEngineOutputIsUpstream(t *testing.T) {
	store := seededStore(t, "u1")
	engine := &engineSpy{result: domain.Recognition{Question: "  ", Solution: "s"}}
	uc := NewRecognizeUseCase(store, store, engine, mustLocator(), nil, time.Second)

	_, err := uc.Recognize(context.Background(), "u1", uploadID, testRef)
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestRecognizePersistFailures(t *testing.T) {
	cases := []struct {
		name      string
		createErr error
		wantKind  error
	}{
		{name: "write failure", createErr: errors.New("disk full"), wantKind: domain.ErrPersistence},
		{name: "upload vanished", createErr: fmt.Errorf("fk: %w", domain.ErrNotFound), wantKind: domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := seededStore(t, "u1")
			results := &resultStoreFake{Store: store, createErr: tc.createErr}
			engine := &engineSpy{result: domain.Recognition{Question: "q", Solution: "s"}}
			uc := NewRecognizeUseCase(store, results, engine, mustLocator(), nil, time.Second)

			_, err := uc.Recognize(context.Background(), "u1", uploadID, testRef)
			if !domain.IsKind(err, tc.wantKind) {
				t.Fatalf("expected %v, got %v", tc.wantKind, err)
			}
		})
	}
}

// barrierEngine holds each caller until two calls are in flight, forcing both
// requests past the cache check before either inserts.
type barrierEngine struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (e *barrierEngine) Recognize(context.Context, string) (domain.Recognition, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	if n == 2 {
		close(e.release)
	}
	e.mu.Unlock()

	select {
	case <-e.release:
	case <-time.After(2 * time.Second):
	}
	return domain.Recognition{Question: fmt.Sprintf("question from call %d", n), Solution: "s"}, nil
}

func TestRecognizeConcurrentFirstCallsResolveToOneResult(t *testing.T) {
	store := seededStore(t, "u1")
	engine := &barrierEngine{release: make(chan struct{})}
	observer := &observerSpy{}
	uc := NewRecognizeUseCase(store, store, engine, mustLocator(), observer, 5*time.Second)

	var wg sync.WaitGroup
	outcomes := make([]*domain.RecognitionOutcome, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = uc.Recognize(context.Background(), "u1", uploadID, testRef)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if outcomes[0].Recognition != outcomes[1].Recognition {
		t.Fatalf("expected identical results, got %+v and %+v", outcomes[0], outcomes[1])
	}
	fresh := 0
	for _, o := range outcomes {
		if !o.Cached {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("expected exactly one fresh outcome, got %d", fresh)
	}

	stored, err := store.GetResult(context.Background(), uploadID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if stored.Question != outcomes[0].Question {
		t.Fatalf("returned text must match stored row: %q vs %q", outcomes[0].Question, stored.Question)
	}
	results, _ := store.ListResults(context.Background(), "u1")
	if len(results) != 1 {
		t.Fatalf("expected one result row, got %d", len(results))
	}
}

func TestListResultsRequiresPrincipal(t *testing.T) {
	store := memory.NewStore()
	uc := NewRecognizeUseCase(store, store, &engineSpy{}, mustLocator(), nil, time.Second)
	if _, err := uc.ListResults(context.Background(), " "); !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
