package handlers

import (
	"net/http"

	"github.com/ajperformance/storefront/backend/service"
	"github.com/go-chi/chi/v5"
)

type UsersHandler struct {
	Users *service.Users
}

// ListUsers returns a page of users (admin only). Query: page, limit, search, isAdmin.
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.Users.List(r.Context(), listQuery(r))
	if err != nil {
		// 502 on store failure, like the e-book listing.
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
