package http

import (
	"net/http"

	"revo/internal/ai"
	"revo/internal/auth"
	"revo/internal/config"
	"revo/internal/http/handler"
	mw "revo/internal/http/middleware"
	"revo/internal/reflection"
	"revo/internal/summary"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, summarizer ai.Summarizer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	account := &auth.Account{DB: db, DefaultTimeZone: cfg.DefaultTimeZone}
	reflSvc := &reflection.Service{DB: db, AI: summarizer}
	store := &summary.GormStore{DB: db}
	machine := &summary.Machine{Store: store, Reflections: reflSvc, AI: summarizer}

	me := &handler.MeHandler{DB: db, Account: account, Refl: reflSvc}
	reflH := &handler.ReflectionHandler{Svc: reflSvc, Account: account}
	sumH := &handler.SummaryHandler{Machine: machine, Store: store, Account: account}
	pubH := &handler.PublicHandler{Svc: reflSvc}

	r.Route("/public/reflections", func(r chi.Router) {
		r.Get("/", pubH.Feed)
		r.Get("/{id}", pubH.Get)
		r.Post("/{id}/like", pubH.Like)
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/", me.Me)
		r.Put("/timezone", me.SetTimeZone)
		r.Get("/roles", me.Roles)
		r.Post("/roles", me.AddRole)
		r.Delete("/roles", me.RemoveRole)
		r.Get("/stats", me.Stats)
		r.Delete("/account", me.DeleteAccount)
	})

	r.Route("/reflections", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Post("/", reflH.Create)
		r.Get("/", reflH.List)

		r.Get("/{id}", reflH.Get)
		r.Put("/{id}", reflH.Edit)
		r.Delete("/{id}", reflH.Delete)

		r.Post("/{id}/suggestions", reflH.GenerateSuggestions)
		r.Put("/{id}/visibility", reflH.SetVisibility)
		r.Post("/{id}/like", reflH.ToggleLike)
	})

	r.With(auth.RequireAuth(jwtSvc)).Get("/my-likes", reflH.MyLikes)

	r.Route("/weekly", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/current", sumH.CurrentWeek)
		r.Get("/{weekId}", sumH.WeekStatus)
		r.Post("/{weekId}", sumH.WeekGenerate)
	})

	r.With(auth.RequireAuth(jwtSvc)).Post("/monthly/{month}", sumH.Month)

	return r
}
