package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmapos/m/internal/audit"
	"pharmapos/m/internal/inventory"
	"pharmapos/m/internal/reports"
	"pharmapos/m/internal/sales"
)

// Options tune the HTTP layer.
type Options struct {
	Secret        string
	CheckoutRate  float64
	CheckoutBurst int
	CORSOrigins   []string
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db        *sqlx.DB
	secret    string
	log       *zap.Logger
	validate  *validator.Validate
	audit     *audit.Recorder
	sales     *sales.Processor
	inventory *inventory.Service
	reports   *reports.Service
	limiter   *shopLimiter
	origins   []string
	now       func() time.Time
}

// New constructs a Handler and the services behind it.
func New(db *sqlx.DB, log *zap.Logger, opts Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	recorder := audit.NewRecorder(db)
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{
		db:        db,
		secret:    opts.Secret,
		log:       log,
		validate:  validator.New(),
		audit:     recorder,
		sales:     sales.NewProcessor(db, recorder, log.Named("sales")),
		inventory: inventory.NewService(db, recorder, log.Named("inventory")),
		reports:   reports.NewService(db),
		limiter:   newShopLimiter(opts.CheckoutRate, opts.CheckoutBurst),
		origins:   origins,
		now:       time.Now,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}))
	r.Use(clientInfo)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/pos", func(r chi.Router) {
			r.Post("/sales", h.checkout)
			r.Get("/batches", h.searchBatches)
			r.Get("/medicines/{id}/units", h.medicineUnits)
			r.Get("/medicines/{id}/availability", h.availability)
		})

		pr.Get("/sales/{invoice}", h.saleByInvoice)

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales", h.salesRange)
			r.Get("/sales/daily", h.dailySales)
			r.Get("/sales/top", h.topMedicines)
			r.Get("/shops", h.shopComparison)
		})

		pr.Get("/activity", h.activity)

		pr.Route("/stock", func(r chi.Router) {
			r.Post("/", h.receiveStock)
			r.Put("/{id}/quantity", h.adjustStock)
			r.Delete("/{id}", h.deactivateStock)
			r.Get("/alerts/expired", h.expiredAlerts)
			r.Get("/alerts/expiring", h.expiringAlerts)
			r.Get("/alerts/low", h.lowStockAlerts)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt64 parses an optional positive integer query parameter; zero means absent.
func queryInt64(r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	return v, err == nil && v > 0
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
