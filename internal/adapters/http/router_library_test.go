package httpadapter

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/gapdrill/internal/config"
	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/infrastructure/export/xlsx"
)

func TestErrorLibraryLifecycle(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	upload := env.confirm(t, "u1", testRef)

	res := env.do(t, http.MethodPost, "/v1/error-library", "u1", map[string]string{
		"uploadId": upload.ID,
		"question": "Solve 2x = 6",
		"solution": "x = 3",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	entry := decodeBody[domain.LibraryEntry](t, res)
	path := "/v1/error-library/" + entry.ID

	if res := env.do(t, http.MethodPost, "/v1/error-library", "u2", map[string]string{
		"uploadId": upload.ID,
		"question": "q",
		"solution": "s",
	}); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 forking a foreign upload, got %d", res.Code)
	}
	if res := env.do(t, http.MethodGet, path, "u2", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected foreign entry to be hidden as 404, got %d", res.Code)
	}

	byUpload := decodeBody[[]domain.LibraryEntry](t, env.do(t, http.MethodGet, "/v1/uploads/"+upload.ID+"/error-library", "u1", nil))
	if len(byUpload) != 1 || byUpload[0].ID != entry.ID {
		t.Fatalf("unexpected entries by upload %+v", byUpload)
	}

	res = env.do(t, http.MethodPut, path, "u1", map[string]string{"question": "Solve 3x = 9"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	updated := decodeBody[domain.LibraryEntry](t, res)
	if updated.Question != "Solve 3x = 9" || updated.Solution != "x = 3" {
		t.Fatalf("unexpected patched entry %+v", updated)
	}

	res = env.do(t, http.MethodGet, "/v1/error-library/export", "u1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 export, got %d: %s", res.Code, res.Body.String())
	}
	if ct := res.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	book, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows(xlsx.SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 || rows[1][2] != "Solve 3x = 9" {
		t.Fatalf("unexpected exported rows %v", rows)
	}

	if res := env.do(t, http.MethodDelete, path, "u1", nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", res.Code)
	}
	list := decodeBody[[]domain.LibraryEntry](t, env.do(t, http.MethodGet, "/v1/error-library", "u1", nil))
	if len(list) != 0 {
		t.Fatalf("expected empty library, got %+v", list)
	}
}

func TestDeletingUploadCascadesToLibrary(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	upload := env.confirm(t, "u1", testRef)

	res := env.do(t, http.MethodPost, "/v1/error-library", "u1", map[string]string{
		"uploadId": upload.ID,
		"question": "q",
		"solution": "s",
	})
	entry := decodeBody[domain.LibraryEntry](t, res)

	if res := env.do(t, http.MethodDelete, "/v1/uploads/"+upload.ID, "u1", nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res := env.do(t, http.MethodGet, "/v1/error-library/"+entry.ID, "u1", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected cascaded entry to be gone, got %d", res.Code)
	}
}
