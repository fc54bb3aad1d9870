package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ajperformance/storefront/backend/middleware"
	"github.com/ajperformance/storefront/backend/models"
	"github.com/ajperformance/storefront/backend/service"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	Identity *service.Identity
	Users    *service.Users
	// VerifyURL is the front-end page that receives userId and secret from the verification mail.
	VerifyURL string
	// SecureCookies marks the sign-in nonce cookie Secure; off only for plain-HTTP local development.
	SecureCookies bool
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type MeResponse struct {
	Account *models.Account `json:"account"`
	User    *models.User    `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	req.VerifyURL = h.VerifyURL
	account, err := h.Identity.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	session, err := h.Identity.CreateSession(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if err := h.Identity.DeleteSession(r.Context(), session.Token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in account together with its profile document.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	account, err := h.Identity.CurrentUser(r.Context(), session.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Users.Ensure(r.Context(), account, account.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{Account: account, User: user})
}

// ResendVerification mails a new verification link. Body: {"email"}. Always 202 so addresses
// cannot be enumerated.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := h.Identity.ResendVerification(r.Context(), req.Email, h.VerifyURL); err != nil {
		log.Warn().Err(err).Msg("resend verification")
	}
	w.WriteHeader(http.StatusAccepted)
}

// ConfirmVerification completes the link from the verification mail. Body: {"userId","secret"}.
func (h *AuthHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := h.Identity.ConfirmVerification(r.Context(), req.UserID, req.Secret); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

const (
	oauthNonceCookie = "oauth_nonce"
	oauthCookiePath  = "/api/auth/oauth"
)

// GoogleRedirect starts Google sign-in. Query: success, failure (front-end URLs on an allowed origin).
// The sign-in nonce is pinned to this browser with a short-lived cookie.
func (h *AuthHandler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, nonce, err := h.Identity.CreateOAuthRedirect(models.AuthMethodGoogle, q.Get("success"), q.Get("failure"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthNonceCookie,
		Value:    nonce,
		Path:     oauthCookiePath,
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

// GoogleCallback finishes Google sign-in and redirects to the success URL with the session token
// in the fragment, or to the failure URL with an error message.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var nonce string
	if c, err := r.Cookie(oauthNonceCookie); err == nil {
		nonce = c.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthNonceCookie,
		Path:     oauthCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	session, state, err := h.Identity.CompleteOAuth(r.Context(), q.Get("code"), q.Get("state"), nonce)
	if err != nil {
		if state == nil {
			writeError(w, err)
			return
		}
		log.Warn().Err(err).Msg("google sign-in")
		http.Redirect(w, r, withFragment(state.FailureURL, url.Values{"error": {err.Error()}}), http.StatusFound)
		return
	}
	http.Redirect(w, r, withFragment(state.SuccessURL, url.Values{"token": {session.Token}}), http.StatusFound)
}

func withFragment(target string, v url.Values) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	u.Fragment = ""
	return u.String() + "#" + v.Encode()
}

// UpdatePhone completes the profile. Body: {"phoneNumber"}.
func (h *AuthHandler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	user, err := h.Users.UpdatePhone(r.Context(), id, req.PhoneNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
