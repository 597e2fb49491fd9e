package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmapos/m/internal/inventory"
	"pharmapos/m/internal/logger"
	"pharmapos/m/internal/sales"
)

type checkoutItem struct {
	BatchID      int64           `json:"batchId"`
	UnitID       int64           `json:"unitId"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Total        decimal.Decimal `json:"total"`
	MedicineName string          `json:"medicineName"`
}

type checkoutRequest struct {
	Items          []checkoutItem  `json:"items"`
	CustomerName   string          `json:"customer_name" validate:"max=100"`
	CustomerPhone  string          `json:"customer_phone" validate:"omitempty,max=20"`
	CustomerCNIC   string          `json:"customer_cnic" validate:"omitempty,max=20"`
	PaymentMethod  string          `json:"payment_method"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShopID         int64           `json:"shop_id"`
}

type checkoutResponse struct {
	Success       bool        `json:"success"`
	InvoiceNumber string      `json:"invoice_number,omitempty"`
	SaleID        int64       `json:"sale_id,omitempty"`
	TotalAmount   json.Number `json:"total_amount,omitempty"`
	Message       string      `json:"message,omitempty"`
}

func respondCheckoutError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, checkoutResponse{Success: false, Message: message})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondCheckoutError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondCheckoutError(w, http.StatusBadRequest, "Customer details are too long")
		return
	}

	claims := currentClaims(r)
	shopID, aerr := resolveShop(claims, req.ShopID)
	if aerr != nil {
		if aerr.status == http.StatusBadRequest {
			respondCheckoutError(w, aerr.status, "Shop not specified")
		} else {
			respondCheckoutError(w, aerr.status, aerr.message)
		}
		return
	}
	if !h.limiter.allow(shopID) {
		respondCheckoutError(w, http.StatusTooManyRequests, "Too many checkouts, please retry shortly")
		return
	}

	saleReq := sales.SaleRequest{
		ShopID:     shopID,
		OperatorID: claims.UserID,
		Customer: sales.Customer{
			Name:  req.CustomerName,
			Phone: req.CustomerPhone,
			CNIC:  req.CustomerCNIC,
		},
		Items:          make([]sales.LineItem, len(req.Items)),
		DiscountAmount: req.DiscountAmount,
		PaymentMethod:  req.PaymentMethod,
	}
	for i, it := range req.Items {
		saleReq.Items[i] = sales.LineItem{
			BatchID:      it.BatchID,
			UnitID:       it.UnitID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			LineTotal:    it.Total,
			MedicineName: it.MedicineName,
		}
	}

	receipt, err := h.sales.ProcessSale(r.Context(), saleReq)
	if err != nil {
		var (
			vErr     *sales.ValidationError
			stockErr *sales.InsufficientStockError
		)
		switch {
		case errors.As(err, &vErr):
			respondCheckoutError(w, http.StatusBadRequest, vErr.Message)
		case errors.As(err, &stockErr):
			respondCheckoutError(w, http.StatusConflict, stockErr.Error())
		default:
			logger.FromContext(r.Context(), h.log).Error("checkout failed", zap.Int64("shop_id", shopID), zap.Error(err))
			respondCheckoutError(w, http.StatusInternalServerError, "Unable to process sale")
		}
		return
	}

	respondJSON(w, http.StatusCreated, checkoutResponse{
		Success:       true,
		InvoiceNumber: receipt.InvoiceNumber,
		SaleID:        receipt.SaleID,
		TotalAmount:   json.Number(receipt.Total.StringFixed(2)),
	})
}

func (h *Handler) searchBatches(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.inventory.SearchBatches(r.Context(), shopID, strings.TrimSpace(r.URL.Query().Get("query")), limit)
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("search batches", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to search stock")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) medicineUnits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	units, err := h.inventory.UnitsForMedicine(r.Context(), id)
	if errors.Is(err, inventory.ErrMedicineNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("load units", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to load units")
		return
	}
	respondJSON(w, http.StatusOK, units)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	medicineID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	quantity, ok := queryInt64(r, "quantity")
	if !ok || quantity == 0 {
		respondError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}
	shopID, ok := h.shopFromQuery(w, r)
	if !ok {
		return
	}
	available, err := h.sales.CheckAvailability(r.Context(), shopID, medicineID, quantity)
	if err != nil {
		logger.FromContext(r.Context(), h.log).Error("check availability", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to check availability")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"medicine_id": medicineID, "quantity": quantity, "available": available})
}
