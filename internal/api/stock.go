package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pharmapos/m/domain"
	"pharmapos/m/internal/inventory"
	"pharmapos/m/internal/logger"
)

func (h *Handler) respondInventoryError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, inventory.ErrBatchNotFound), errors.Is(err, inventory.ErrMedicineNotFound), errors.Is(err, inventory.ErrShopNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, inventory.ErrInvalidDates), errors.Is(err, inventory.ErrInvalidBatch):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context(), h.log).Error(op, zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to "+op)
	}
}

func (h *Handler) receiveStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleShopAdmin, domain.RoleSuperAdmin) {
		return
	}
	var req inventory.NewBatch
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	shopID, aerr := resolveShop(currentClaims(r), req.ShopID)
	if aerr != nil {
		respondError(w, aerr.status, aerr.message)
		return
	}
	req.ShopID = shopID

	batch, err := h.inventory.ReceiveBatch(r.Context(), req)
	if err != nil {
		h.respondInventoryError(w, r, "receive stock", err)
		return
	}
	respondJSON(w, http.StatusCreated, batch)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleShopAdmin, domain.RoleSuperAdmin) {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	var payload struct {
		Quantity *int64 `json:"quantity"`
		ShopID   int64  `json:"shop_id"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Quantity == nil {
		respondError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	shopID, aerr := resolveShop(currentClaims(r), payload.ShopID)
	if aerr != nil {
		respondError(w, aerr.status, aerr.message)
		return
	}
	if err := h.inventory.SetQuantity(r.Context(), shopID, id, *payload.Quantity); err != nil {
		h.respondInventoryError(w, r, "update stock", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stock updated"})
}

func (h *Handler) deactivateStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleShopAdmin, domain.RoleSuperAdmin) {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	if err := h.inventory.Deactivate(r.Context(), shopID, id); err != nil {
		h.respondInventoryError(w, r, "deactivate stock", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *Handler) expiredAlerts(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	views, err := h.inventory.ExpiredBatches(r.Context(), shopID)
	if err != nil {
		h.respondInventoryError(w, r, "fetch alerts", err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) expiringAlerts(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	days, ok := queryInt64(r, "days")
	if !ok {
		respondError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	batches, err := h.inventory.ExpiringSoon(r.Context(), shopID, int(days))
	if err != nil {
		h.respondInventoryError(w, r, "fetch alerts", err)
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

func (h *Handler) lowStockAlerts(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	threshold, ok := queryInt64(r, "threshold")
	if !ok {
		respondError(w, http.StatusBadRequest, "threshold must be a positive integer")
		return
	}
	views, err := h.inventory.LowStockBatches(r.Context(), shopID, threshold)
	if err != nil {
		h.respondInventoryError(w, r, "fetch alerts", err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}
