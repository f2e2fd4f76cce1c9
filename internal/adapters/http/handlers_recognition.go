package httpadapter

import (
	"net/http"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

type recognizeRequest struct {
	UploadID string `json:"uploadId"`
	ImageURL string `json:"imageUrl"`
}

type recognizeResponse struct {
	Success bool               `json:"success"`
	Result  domain.Recognition `json:"result"`
	Cached  bool               `json:"cached"`
}

func (rt *Router) recognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if err := decodeJSON(w, r, "recognize", &req); err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := rt.deps.Recognizer.Recognize(r.Context(), principalFromContext(r.Context()), req.UploadID, req.ImageURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recognizeResponse{
		Success: true,
		Result:  outcome.Recognition,
		Cached:  outcome.Cached,
	})
}

func (rt *Router) listRecognitionResults(w http.ResponseWriter, r *http.Request) {
	results, err := rt.deps.Recognizer.ListResults(r.Context(), principalFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.RecognitionResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
