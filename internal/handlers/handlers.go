package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bullionworks/checkout/internal/checkout"
	"github.com/bullionworks/checkout/internal/db"
	"github.com/bullionworks/checkout/internal/rails"
	"github.com/bullionworks/checkout/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	Database     db.Database
	Logger       *zap.SugaredLogger
	Orchestrator *checkout.Orchestrator
	Sessions     *checkout.Store
}

type startCheckoutRequest struct {
	Lines       []models.CartLine      `json:"lines"`
	Fulfillment models.FulfillmentType `json:"fulfillment"`
}

type startCheckoutResponse struct {
	SessionID string          `json:"session_id"`
	State     checkout.State  `json:"state"`
	Total     decimal.Decimal `json:"total"`
}

func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get("UUID")
	if customerID == "" {
		http.Error(w, "customer UUID not found", http.StatusUnauthorized)
		return
	}

	var request startCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.Logger.Error("error decoding checkout request", zap.Error(err))
		http.Error(w, "error decoding checkout request", http.StatusBadRequest)
		return
	}

	if len(request.Lines) == 0 {
		http.Error(w, "cart is empty", http.StatusBadRequest)
		return
	}
	if request.Fulfillment == "" {
		request.Fulfillment = models.FulfillmentVault
	}

	session := h.Sessions.Create(customerID, request.Lines, request.Fulfillment)

	h.writeJSON(w, startCheckoutResponse{
		SessionID: session.UUID,
		State:     session.State,
		Total:     session.Total,
	})
}

func (h *Handler) ConfirmCart(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	resolution, err := h.Orchestrator.ConfirmCart(r.Context(), session)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	h.writeJSON(w, resolution)
}

type payRequest struct {
	Tier          models.PaymentTier `json:"tier"`
	BankAccountID string             `json:"bank_account_id"`
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var request payRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.Logger.Error("error decoding payment request", zap.Error(err))
		http.Error(w, "error decoding payment request", http.StatusBadRequest)
		return
	}

	result, err := h.Orchestrator.SubmitPayment(r.Context(), session, request.Tier, request.BankAccountID)
	if err != nil {
		// Provisioning failure is fatal for the session; the customer
		// starts checkout over.
		if errors.Is(err, checkout.ErrOrderProvisioning) {
			h.Sessions.Drop(session.UUID)
		}
		h.writeCheckoutError(w, err)
		return
	}

	h.writeJSON(w, result)
}

type cardConfirmRequest struct {
	AuthorizationRef string `json:"authorization_ref"`
}

func (h *Handler) CardConfirm(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var request cardConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.Logger.Error("error decoding card confirm request", zap.Error(err))
		http.Error(w, "error decoding card confirm request", http.StatusBadRequest)
		return
	}

	result, err := h.Orchestrator.ConfirmCard(r.Context(), session, request.AuthorizationRef)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	h.writeJSON(w, result)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := h.Orchestrator.Acknowledge(session)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	h.Sessions.Drop(session.UUID)
	h.writeJSON(w, result)
}

func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	// A provisioned order stays PENDING; external reconciliation expires it.
	h.Sessions.Drop(session.UUID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OrdersGet(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get("UUID")
	if customerID == "" {
		http.Error(w, "customer UUID not found", http.StatusUnauthorized)
		return
	}

	orders, err := h.Database.GetOrdersList(customerID)
	if err != nil {
		h.Logger.Error("error getting orders list", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, orders)
}

func (h *Handler) OrderGet(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get("UUID")
	if customerID == "" {
		http.Error(w, "customer UUID not found", http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := h.Database.GetOrderByID(orderID)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("error getting order", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if order.CustomerID != customerID {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, order)
}

func (h *Handler) Funding(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get("UUID")
	if customerID == "" {
		http.Error(w, "customer UUID not found", http.StatusUnauthorized)
		return
	}

	shortfall := decimal.Zero
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		if session, ok := h.Sessions.Get(sessionID); ok && session.CustomerID == customerID {
			shortfall = session.ShortfallAmount()
		}
	}

	advice, err := h.Orchestrator.FundAccount(r.Context(), customerID, shortfall)
	if err != nil {
		h.Logger.Error("error getting funding advice", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, advice)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	customerID := r.Header.Get("UUID")
	if customerID == "" {
		http.Error(w, "customer UUID not found", http.StatusUnauthorized)
		return nil, false
	}

	sessionID := chi.URLParam(r, "sessionID")
	session, ok := h.Sessions.Get(sessionID)
	if !ok || session.CustomerID != customerID {
		http.Error(w, "checkout session not found", http.StatusNotFound)
		return nil, false
	}

	return session, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("error encoding response", zap.Error(err))
	}
}

// writeCheckoutError maps the error taxonomy onto transport codes. Every
// rail error has already rolled the session back to an actionable state.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var validation *checkout.ValidationError
	var achErr *rails.AchError
	var declined *rails.CardDeclinedError

	switch {
	case errors.As(err, &validation):
		http.Error(w, validation.Msg, http.StatusBadRequest)
	case errors.Is(err, checkout.ErrProcessing):
		http.Error(w, "payment already in progress", http.StatusConflict)
	case errors.Is(err, checkout.ErrWrongState):
		http.Error(w, "operation not allowed in current state", http.StatusConflict)
	case errors.Is(err, checkout.ErrPolicyUnavailable):
		http.Error(w, "payment methods are unavailable, try again", http.StatusServiceUnavailable)
	case errors.Is(err, checkout.ErrOrderProvisioning):
		http.Error(w, "failed to create order, restart checkout", http.StatusInternalServerError)
	case errors.Is(err, rails.ErrInsufficientFunds):
		http.Error(w, "insufficient funds", http.StatusPaymentRequired)
	case errors.Is(err, rails.ErrNotConfigured):
		http.Error(w, "card payments are unavailable", http.StatusServiceUnavailable)
	case errors.As(err, &achErr):
		http.Error(w, achErr.Error(), http.StatusPaymentRequired)
	case errors.As(err, &declined):
		http.Error(w, declined.Error(), http.StatusPaymentRequired)
	default:
		h.Logger.Error("checkout error", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
