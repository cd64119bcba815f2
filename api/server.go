/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the role-scoped
  route groups. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error bodies
  2. RealIP:     Client address behind proxies
  3. zapLogger:  Structured request log (method, path, status, latency)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the HR frontend
  6. Auth:       Bearer JWT (or trusted headers when auth is disabled)

ROUTE GROUPS:
  /healthz          Liveness and store ping, no auth
  /api/admin/*      role admin
  /api/manager/*    role manager or admin, scoped to direct reports
  /api/employee/*   any role, scoped to the caller

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticate / RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterOptions struct {
	AllowedOrigins []string
	JWTSecret      string
	// AuthDisabled swaps bearer tokens for X-Employee-ID / X-Role headers.
	AuthDisabled bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(zapLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Employee-ID", "X-Role"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		if opts.AuthDisabled {
			r.Use(TrustHeaders)
		} else {
			r.Use(Authenticate(opts.JWTSecret))
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(RoleAdmin))

			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.CreateEmployee)
				r.Get("/{id}", h.GetEmployee)
				r.Post("/{id}/probation/{action}", h.Probation)
				r.Get("/{id}/balance", h.EmployeeBalance)
				r.Get("/{id}/adjustments", h.ListAdjustments)
				r.Post("/{id}/adjustments", h.CreateAdjustment)
			})

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.ListPolicies)
				r.Post("/", h.CreatePolicy)
			})

			r.Route("/holidays", func(r chi.Router) {
				r.Get("/", h.ListHolidays)
				r.Post("/", h.CreateHoliday)
				r.Delete("/{id}", h.DeleteHoliday)
			})

			r.Route("/leave-requests", func(r chi.Router) {
				r.Get("/", h.ListRequests)
				r.Post("/", h.CreateRequest)
				r.Post("/{id}/approve", h.Approve)
				r.Post("/{id}/reject", h.Reject)
				r.Get("/{id}/pay-status", h.PayStatus)
			})

			r.Post("/recompute", h.Recompute)

			r.Route("/reports", func(r chi.Router) {
				r.Get("/balances", h.AllBalances)
				r.Get("/monthly", h.MonthlyReport)
			})
		})

		r.Route("/manager", func(r chi.Router) {
			r.Use(RequireRole(RoleManager, RoleAdmin))

			r.Get("/team", h.Team)
			r.Get("/balances", h.TeamBalances)
			r.Route("/leave-requests", func(r chi.Router) {
				r.Get("/", h.TeamRequests)
				r.Post("/{id}/approve", h.TeamApprove)
				r.Post("/{id}/reject", h.TeamReject)
			})
		})

		r.Route("/employee", func(r chi.Router) {
			r.Use(RequireRole(RoleEmployee, RoleManager, RoleAdmin))

			r.Get("/balance", h.MyBalance)
			r.Get("/monthly", h.MyMonthly)
			r.Route("/leave-requests", func(r chi.Router) {
				r.Get("/", h.MyRequests)
				r.Post("/", h.CreateRequest)
				r.Get("/{id}/pay-status", h.MyPayStatus)
			})
		})
	})

	return r
}

// zapLogger logs one line per request after it completes.
func zapLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
