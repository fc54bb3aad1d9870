package handlers

import (
	"net/http"

	"github.com/ajperformance/storefront/backend/middleware"
	"github.com/ajperformance/storefront/backend/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Categories *service.Categories
	EBooks     *service.EBooks
	Users      *service.Users
	Images     *service.Images
	Identity   *service.Identity
	VerifyURL  string
	// AllowedOrigins restricts CORS; empty allows every origin.
	AllowedOrigins []string
	// AuthLimiter throttles the credential endpoints; nil disables throttling.
	AuthLimiter *middleware.RateLimiter
	// TrustProxy takes the client IP from X-Forwarded-For/X-Real-IP. Enable only behind a proxy that
	// overwrites those headers, otherwise clients pick their own rate-limit bucket.
	TrustProxy bool
	// SecureCookies marks the OAuth nonce cookie Secure.
	SecureCookies bool
}

func NewRouter(d Deps) http.Handler {
	auth := &AuthHandler{Identity: d.Identity, Users: d.Users, VerifyURL: d.VerifyURL, SecureCookies: d.SecureCookies}
	categories := &CategoriesHandler{Categories: d.Categories}
	ebooks := &EBooksHandler{EBooks: d.EBooks}
	uploads := &UploadHandler{Images: d.Images}
	users := &UsersHandler{Users: d.Users}

	r := chi.NewRouter()
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"welcome to the storefront api."}`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if d.AuthLimiter != nil {
					r.Use(d.AuthLimiter.Limit)
				}
				r.Post("/register", auth.Register)
				r.Post("/login", auth.Login)
				r.Post("/verification", auth.ResendVerification)
			})
			r.Put("/verification", auth.ConfirmVerification)
			r.Get("/oauth/google", auth.GoogleRedirect)
			r.Get("/oauth/google/callback", auth.GoogleCallback)
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(d.Identity))
				r.Post("/logout", auth.Logout)
				r.Get("/me", auth.Me)
				r.Patch("/me/phone", auth.UpdatePhone)
			})
		})

		// Public catalog
		r.Get("/categories/all", categories.All)
		r.Get("/ebooks", ebooks.List)
		r.Get("/ebooks/{id}", ebooks.Get)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Identity))
			r.Use(middleware.RequireAdmin(d.Users))
			r.Get("/categories", categories.List)
			r.Post("/categories", categories.Create)
			r.Get("/categories/{id}", categories.Get)
			r.Put("/categories/{id}", categories.Update)
			r.Delete("/categories/{id}", categories.Delete)
			r.Post("/ebooks", ebooks.Create)
			r.Put("/ebooks/{id}", ebooks.Update)
			r.Delete("/ebooks/{id}", ebooks.Delete)
			r.Post("/uploads/images", uploads.Upload)
			r.Get("/users", users.ListUsers)
			r.Get("/users/{id}", users.GetUser)
		})
	})
	return r
}
