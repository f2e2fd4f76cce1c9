package httpadapter

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type libraryEntryRequest struct {
	UploadID string `json:"uploadId"`
	Question string `json:"question"`
	Solution string `json:"solution"`
}

func (rt *Router) createLibraryEntry(w http.ResponseWriter, r *http.Request) {
	var req libraryEntryRequest
	if err := decodeJSON(w, r, "create library entry", &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := rt.deps.Library.CreateEntry(r.Context(), principalFromContext(r.Context()), req.UploadID, req.Question, req.Solution)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (rt *Router) listLibraryEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.deps.Library.ListEntries(r.Context(), principalFromContext(r.Context()))
	writeEntries(w, r, entries, err)
}

func (rt *Router) listUploadLibraryEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.deps.Library.ListEntriesByUpload(r.Context(), principalFromContext(r.Context()), pathID(r))
	writeEntries(w, r, entries, err)
}

func writeEntries(w http.ResponseWriter, r *http.Request, entries []domain.LibraryEntry, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LibraryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (rt *Router) getLibraryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := rt.deps.Library.GetEntry(r.Context(), principalFromContext(r.Context()), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) updateLibraryEntry(w http.ResponseWriter, r *http.Request) {
	var patch domain.LibraryPatch
	if err := decodeJSON(w, r, "update library entry", &patch); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := rt.deps.Library.UpdateEntry(r.Context(), principalFromContext(r.Context()), pathID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) deleteLibraryEntry(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := rt.deps.Library.DeleteEntry(r.Context(), principalFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

// exportLibrary buffers the workbook so a failed export still gets a JSON error.
func (rt *Router) exportLibrary(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := rt.deps.Library.Export(r.Context(), principalFromContext(r.Context()), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="error-library.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
