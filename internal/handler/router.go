package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secissues/secissues-go/internal/middleware"
	"github.com/secissues/secissues-go/internal/service"
)

// RouterDeps is everything NewRouter wires into the route table.
type RouterDeps struct {
	Auth           *service.AuthService
	Posts          *service.PostService
	Governor       middleware.Admitter
	PublicGovernor middleware.Admitter
	FailOpen       bool
	AuthRPS        float64
	AuthBurst      int
	TrustProxy     bool
	CORSOrigins    []string
	Logger         *slog.Logger
}

// NewRouter builds the HTTP routes. Background cleanup started here stops
// when ctx is done.
func NewRouter(ctx context.Context, d RouterDeps) http.Handler {
	authHandler := NewAuthHandler(d.Auth, d.Logger)
	postHandler := NewPostHandler(d.Posts, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.BurstGuard(ctx, d.AuthRPS, d.AuthBurst, d.TrustProxy))
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Governed(d.PublicGovernor, d.FailOpen, d.Logger))
		r.Get("/public/posts", postHandler.HandleListPublic)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(d.Auth, d.Logger))
		r.Use(middleware.Governed(d.Governor, d.FailOpen, d.Logger))

		r.Get("/auth/me", authHandler.HandleMe)
		r.Put("/user/update-password", authHandler.HandleUpdatePassword)

		r.Get("/posts", postHandler.HandleList)
		r.Post("/posts", postHandler.HandleCreate)
		r.Get("/posts/{id}", postHandler.HandleGet)
		r.Put("/posts/{id}", postHandler.HandleUpdateStatus)
		r.Delete("/posts/{id}", postHandler.HandleDelete)
	})

	return r
}
