package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ajperformance/storefront/backend/service"
	"github.com/go-chi/chi/v5"
)

type CategoriesHandler struct {
	Categories *service.Categories
}

type categoryRequest struct {
	Name string `json:"name"`
}

// List returns a page of categories. Query: page, limit, search.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Categories.List(r.Context(), listQuery(r))
	if err != nil {
		// 502 on store failure, like the e-book listing.
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page))
}

// All returns every category sorted by name, for filter and form selects.
func (h *CategoriesHandler) All(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Categories.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	cat, err := h.Categories.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	cat, err := h.Categories.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	cat, err := h.Categories.Update(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// Delete removes the category. E-books pointing at it are not touched.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
