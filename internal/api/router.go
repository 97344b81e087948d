package api

import (
	"net/http"
	"time"

	"ctf_zone/internal/api/handler"
	"ctf_zone/internal/api/middleware"
	"ctf_zone/internal/app/service"
	"ctf_zone/internal/common/security"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type Services struct {
	Auth         *service.AuthService
	Problem      *service.ProblemService
	Contest      *service.ContestService
	Scoring      *service.ScoringService
	Export       *service.ExportService
	Admin        *service.AdminService
	Announcement *service.AnnouncementService
	Maintenance  *service.MaintenanceService
}

func NewRouter(svc Services, users repository.UserRepository, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Observe(m))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(v1 chi.Router) {
		// Bearer token from "Authorization: Bearer T", resolved to a user.
		v1.Use(jwtauth.Verifier(security.TokenAuth))
		v1.Use(middleware.Identify(users))
		v1.Use(middleware.Maintenance(svc.Maintenance.Enabled))

		v1.Route("/auth", handler.NewAuthHandler(svc.Auth).RegisterRoutes)
		v1.Route("/announcements", handler.NewAnnouncementHandler(svc.Announcement).RegisterRoutes)
		v1.Route("/problems", handler.NewProblemHandler(svc.Problem, svc.Scoring).RegisterRoutes)
		v1.Route("/contests", handler.NewContestHandler(svc.Contest, svc.Scoring, svc.Export).RegisterRoutes)
		v1.Route("/admin", handler.NewAdminHandler(svc.Admin, svc.Maintenance).RegisterRoutes)
	})

	return r
}
