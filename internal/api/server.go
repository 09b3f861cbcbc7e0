// Package api provides the HTTP server for the dukaan backend.
// It exposes the REST surface the POS terminal and the shop owner's
// phone app talk to: customers, khata, billing, inventory, and deals.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukaan-labs/dukaan/internal/app/billing"
	"github.com/dukaan-labs/dukaan/internal/app/deals"
	"github.com/dukaan-labs/dukaan/internal/app/khata"
	"github.com/dukaan-labs/dukaan/internal/domain"
	"github.com/dukaan-labs/dukaan/internal/infra/observability"
)

// Store is the read surface the API queries directly. Writes go through
// the services so locking and scoring stay in one place.
type Store interface {
	InsertCustomer(c domain.Customer) error
	GetCustomer(phone string) (*domain.Customer, error)
	ListCustomers() ([]domain.Customer, error)

	LedgerEntries(phone string, mode domain.PaymentMode) ([]domain.LedgerEntry, error)

	UpsertProduct(p domain.Product) error
	GetProduct(id string) (*domain.Product, error)
	ListProducts() ([]domain.Product, error)
	LowStockProducts() ([]domain.Product, error)

	GetBill(id string) (*domain.Bill, error)
}

// Server is the dukaan HTTP API server.
type Server struct {
	store          Store
	billing        *billing.Service
	deals          *deals.Service
	engine         *khata.Engine
	tracer         *observability.Tracer
	metricsEnabled bool

	now func() time.Time
}

// NewServer creates a new API server.
func NewServer(store Store, bill *billing.Service, dl *deals.Service, engine *khata.Engine) *Server {
	return &Server{
		store:   store,
		billing: bill,
		deals:   dl,
		engine:  engine,
		tracer:  observability.NewTracer(1000),
		now:     time.Now,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(s.instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Post("/", s.handleCreateCustomer)
			r.Get("/", s.handleListCustomers)
			r.Get("/{phone}", s.handleGetCustomer)
			r.Get("/{phone}/khata", s.handleKhataStatus)
			r.Post("/{phone}/khata/recalculate", s.handleRecalculate)
			r.Get("/{phone}/ledger", s.handleLedger)
			r.Post("/{phone}/payments", s.handleRecordPayment)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Post("/", s.handleCreateBill)
			r.Get("/{id}", s.handleGetBill)
		})

		r.Route("/products", func(r chi.Router) {
			r.Put("/", s.handleUpsertProduct)
			r.Get("/", s.handleListProducts)
			r.Get("/low-stock", s.handleLowStock)
			r.Get("/{id}", s.handleGetProduct)
		})

		r.Route("/deals", func(r chi.Router) {
			r.Post("/", s.handleCreateDeal)
			r.Get("/", s.handleListDeals)
			r.Post("/{id}/join", s.handleJoinDeal)
		})

		r.Get("/traces", s.handleTraces)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// instrument records a span and Prometheus metrics for every request.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		span := s.tracer.StartSpan(ctx, r.Method+" "+r.URL.Path, nil)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(ww.Status() / 100 * 100)
		observability.HTTPRequests.WithLabelValues(route, r.Method, status).Inc()
		observability.HTTPDuration.WithLabelValues(route).
			Observe(float64(time.Since(start).Milliseconds()))

		var err error
		if ww.Status() >= 500 {
			err = errors.New(http.StatusText(ww.Status()))
		}
		s.tracer.EndSpan(span, err)
	})
}

// corsMiddleware adds CORS headers for the local POS frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Debug ──────────────────────────────────────────────────────────────────

// handleTraces returns recent request spans.
// GET /api/traces?limit=50
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spans": s.tracer.Spans(limit),
	})
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrBillNotFound),
		errors.Is(err, domain.ErrDealNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCustomerExists),
		errors.Is(err, domain.ErrDealClosed),
		errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCreditLimitExceeded):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrEmptyBill),
		errors.Is(err, domain.ErrInvalidPaymentMode),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNothingToSettle):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON decodes a JSON request body.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
