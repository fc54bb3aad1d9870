package handlers

import (
	"errors"
	"net/http"

	"github.com/ajperformance/storefront/backend/service"
)

type UploadHandler struct {
	Images *service.Images
}

type UploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Upload stores a cover image sent as the "file" part and returns its file id.
// The id is meant for the imageId field of the e-book forms.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		http.Error(w, `{"error":"File is required."}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"failed to read file"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	id, err := h.Images.Upload(r.Context(), imageFile(file, header))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{ID: id, URL: h.Images.URLFor(r.Context(), id)})
}
