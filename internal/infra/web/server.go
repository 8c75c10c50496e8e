package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/usecase"
)

type Server struct {
	captureUC   usecase.CaptureUseCase
	provisionUC usecase.ProvisionUseCase
	subUC       usecase.SubscriptionUseCase
	planUC      usecase.PlanUseCase
	statsUC     usecase.StatsUseCase
	contracts   repository.ContractRepository
	auth        *AuthManager
	log         *zerolog.Logger
}

func NewServer(
	captureUC usecase.CaptureUseCase,
	provisionUC usecase.ProvisionUseCase,
	subUC usecase.SubscriptionUseCase,
	planUC usecase.PlanUseCase,
	statsUC usecase.StatsUseCase,
	contracts repository.ContractRepository,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		captureUC:   captureUC,
		provisionUC: provisionUC,
		subUC:       subUC,
		planUC:      planUC,
		statsUC:     statsUC,
		contracts:   contracts,
		auth:        auth,
		log:         logger,
	}
}

// Router builds the full HTTP surface: public payment and activation routes,
// the JWT-protected admin read surface, health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payments/{provider}", func(r chi.Router) {
			r.Post("/order", s.handleCreateOrder)
			r.Post("/order/{orderID}/capture", s.handleCapture)
		})
		r.Post("/accounts/activate", s.handleActivate)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/stats", s.handleStats)
			r.Get("/contracts/{id}", s.handleGetContract)
			r.Get("/users/{id}/subscription", s.handleUserSubscription)
			r.Get("/plans", s.handleListPlans)
			r.Post("/plans", s.handleCreatePlan)
		})
	})
	return r
}

// requestLogger threads the chi request id into the logging context so
// every line emitted while serving carries it.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logging.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil || claims.Role != "admin" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":{"reason":"unauthorized","message":"admin token required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
