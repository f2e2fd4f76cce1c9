package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/gapdrill/internal/config"
	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/usecase"
	"github.com/kirillkom/gapdrill/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/gapdrill/internal/infrastructure/identity/jwtauth"
	"github.com/kirillkom/gapdrill/internal/infrastructure/repository/memory"
	"github.com/kirillkom/gapdrill/internal/observability/metrics"
)

const (
	testDomain     = "public.blob.store.example.com"
	testPublicHost = "gapdrill." + testDomain
	testRef        = "https://abc." + testDomain + "/x.png"
	testJWTSecret  = "router-test-secret"
)

type objectStoreFake struct {
	mu      sync.Mutex
	deleted []string
}

func (f *objectStoreFake) IssueUploadGrant(_ context.Context, g domain.ObjectGrant) (*domain.UploadGrant, error) {
	return &domain.UploadGrant{
		Method:       http.MethodPost,
		UploadURL:    "https://store.example.com/gapdrill-uploads",
		Fields:       map[string]string{"key": g.Key, "Content-Type": g.ContentType},
		Key:          g.Key,
		ExpiresAt:    time.Now().Add(g.Expiry),
		MaxSizeBytes: g.MaxSizeBytes,
	}, nil
}

func (f *objectStoreFake) DeleteByReference(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *objectStoreFake) deletedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type engineFake struct {
	calls atomic.Int32
}

func (e *engineFake) Recognize(context.Context, string) (domain.Recognition, error) {
	e.calls.Add(1)
	return domain.Recognition{Question: "Solve 2x = 6", Solution: "x = 3"}, nil
}

type testEnv struct {
	handler  http.Handler
	store    *memory.Store
	objects  *objectStoreFake
	engine   *engineFake
	verifier *jwtauth.Verifier
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	locator, err := domain.NewLocator(testDomain)
	if err != nil {
		t.Fatalf("NewLocator() error = %v", err)
	}
	verifier, err := jwtauth.NewVerifier(testJWTSecret, "", "")
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	store := memory.NewStore()
	objects := &objectStoreFake{}
	engine := &engineFake{}

	rt, err := NewRouter(cfg, Dependencies{
		Grants: usecase.NewIssueUploadGrantUseCase(objects, locator, usecase.GrantOptions{
			PublicHost:    testPublicHost,
			PublicBaseURL: "https://api.gapdrill.test",
		}),
		Confirmer:  usecase.NewConfirmUploadUseCase(store, objects, locator, nil, time.Second),
		Uploads:    usecase.NewManageUploadsUseCase(store, store, objects, locator),
		Recognizer: usecase.NewRecognizeUseCase(store, store, engine, locator, nil, time.Second),
		Library:    usecase.NewErrorLibraryUseCase(store, store, xlsx.NewExporter()),
		Tokens:     verifier,
		Health:     store,
		Metrics:    metrics.NewHTTPServerMetrics("gapdrill-test"),
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return &testEnv{
		handler:  rt.Handler(),
		store:    store,
		objects:  objects,
		engine:   engine,
		verifier: verifier,
	}
}

func (e *testEnv) do(t *testing.T, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != "" {
		token, err := e.verifier.Issue(principal, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func (e *testEnv) confirm(t *testing.T, principal, ref string) domain.Upload {
	t.Helper()
	res := e.do(t, http.MethodPost, "/v1/uploads", principal, map[string]string{"imageUrl": ref})
	if res.Code != http.StatusCreated {
		t.Fatalf("confirm upload expected 201, got %d: %s", res.Code, res.Body.String())
	}
	return decodeBody[domain.Upload](t, res)
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}
