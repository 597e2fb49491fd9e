package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pharmapos/m/domain"
	"pharmapos/m/internal/logger"
	"pharmapos/m/internal/reports"
)

func (h *Handler) saleByInvoice(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	detail, err := h.reports.SaleByInvoice(r.Context(), shopID, chi.URLParam(r, "invoice"))
	if errors.Is(err, reports.ErrSaleNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("load sale", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to load sale")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleShopAdmin, domain.RoleSuperAdmin) {
		return
	}
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	day := h.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, day.Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
			return
		}
		day = parsed
	}
	summary, err := h.reports.DailySummary(r.Context(), shopID, day)
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("daily summary", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch daily sales")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleShopAdmin, domain.RoleSuperAdmin) {
		return
	}
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.audit.Recent(r.Context(), shopID, limit)
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("load activity", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to load activity")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// dateRange reads from/to (YYYY-MM-DD) from the query, defaulting to month to date.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (reports.Range, bool) {
	rng := reports.MonthToDate(h.now())
	for _, p := range []struct {
		name string
		dest *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := strings.TrimSpace(r.URL.Query().Get(p.name))
		if raw == "" {
			continue
		}
		parsed, err := time.ParseInLocation("2006-01-02", raw, rng.To.Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, p.name+" must be in YYYY-MM-DD format")
			return rng, false
		}
		*p.dest = parsed
	}
	if rng.From.After(rng.To) {
		respondError(w, http.StatusBadRequest, reports.ErrInvalidRange.Error())
		return rng, false
	}
	return rng, true
}

func (h *Handler) salesRange(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleShopAdmin, domain.RoleSuperAdmin) {
		return
	}
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	rng, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	rep, err := h.reports.RangeSummary(r.Context(), shopID, rng)
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("range summary", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch sales report")
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (h *Handler) topMedicines(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleShopAdmin, domain.RoleSuperAdmin) {
		return
	}
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	rng, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	top, err := h.reports.TopMedicines(r.Context(), shopID, rng, limit)
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("top medicines", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch top medicines")
		return
	}
	respondJSON(w, http.StatusOK, top)
}

func (h *Handler) shopComparison(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleSuperAdmin) {
		return
	}
	rng, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	shops, err := h.reports.ShopComparison(r.Context(), rng)
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("shop comparison", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to compare shops")
		return
	}
	respondJSON(w, http.StatusOK, shops)
}
