package httpadapter

import (
	"net/http"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

type imageRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (rt *Router) issueUploadGrant(w http.ResponseWriter, r *http.Request) {
	var req domain.GrantRequest
	if err := decodeJSON(w, r, "issue upload grant", &req); err != nil {
		writeError(w, r, err)
		return
	}
	grant, err := rt.deps.Grants.IssueGrant(r.Context(), principalFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (rt *Router) confirmUpload(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(w, r, "confirm upload", &req); err != nil {
		writeError(w, r, err)
		return
	}
	upload, err := rt.deps.Confirmer.ConfirmUpload(r.Context(), principalFromContext(r.Context()), req.ImageURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

func (rt *Router) listUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := rt.deps.Uploads.ListUploads(r.Context(), principalFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if uploads == nil {
		uploads = []domain.UploadWithResult{}
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (rt *Router) getUpload(w http.ResponseWriter, r *http.Request) {
	upload, err := rt.deps.Uploads.GetUpload(r.Context(), principalFromContext(r.Context()), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

func (rt *Router) updateUpload(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(w, r, "update upload", &req); err != nil {
		writeError(w, r, err)
		return
	}
	upload, err := rt.deps.Uploads.UpdateImage(r.Context(), principalFromContext(r.Context()), pathID(r), req.ImageURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

func (rt *Router) deleteUpload(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := rt.deps.Uploads.DeleteUpload(r.Context(), principalFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}
