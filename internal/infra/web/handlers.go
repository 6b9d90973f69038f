package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/infra/metrics"
	"telegram-vpn-billing/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// ---- webhook ----

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[http.CanonicalHeaderKey(k)] = r.Header.Get(k)
	}

	ack, err := s.reconcileUC.HandleWebhook(r.Context(), tenantID, provider, body, headers)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			metrics.IncWebhook(provider, "invalid")
			http.Error(w, "invalid signature", http.StatusForbidden)
		case errors.Is(err, domain.ErrUnknownProviderRef):
			metrics.IncWebhook(provider, "unknown_ref")
			http.Error(w, "unknown payment reference", http.StatusNotFound)
		case errors.Is(err, domain.ErrValidation):
			http.Error(w, "bad request", http.StatusBadRequest)
		default:
			s.log.Error().Err(err).Str("provider", provider).Msg("webhook processing failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	if ack.Duplicate {
		metrics.IncWebhook(provider, "duplicate")
	} else {
		metrics.IncWebhook(provider, ack.Outcome)
		if ack.Completed {
			metrics.AddRevenue(provider, ack.Amount)
		}
	}

	// Providers retry anything but 200.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ---- service API ----

type quoteRequest struct {
	UserID       string `json:"user_id"`
	PeriodDays   int    `json:"period_days"`
	TrafficGB    int64  `json:"traffic_gb"`
	ExtraDevices int    `json:"extra_devices"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	var req quoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	q, err := s.purchaseUC.Quote(r.Context(), tenantID, req.UserID, req.PeriodDays,
		usecase.Addons{TrafficGB: req.TrafficGB, ExtraDevices: req.ExtraDevices})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type purchaseRequest struct {
	quoteRequest
	Provider string `json:"provider"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	var req purchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Re-quote server-side; the client never supplies a total.
	q, err := s.purchaseUC.Quote(r.Context(), tenantID, req.UserID, req.PeriodDays,
		usecase.Addons{TrafficGB: req.TrafficGB, ExtraDevices: req.ExtraDevices})
	if err != nil {
		s.writeError(w, err)
		return
	}

	handle, err := s.purchaseUC.InitiatePurchase(r.Context(), tenantID, req.UserID, req.Provider, q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.IncPaymentInitiated(req.Provider)
	writeJSON(w, http.StatusOK, handle)
}

type depositRequest struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}

	handle, err := s.purchaseUC.InitiateDeposit(r.Context(), tenantID, req.UserID, req.Provider, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.IncPaymentInitiated(req.Provider)
	writeJSON(w, http.StatusOK, handle)
}

type promoRedeemRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

func (s *Server) handlePromoRedeem(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	var req promoRedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pc, err := s.promoUC.Redeem(r.Context(), tenantID, req.UserID, req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":          pc.Code,
		"balance_bonus": pc.BalanceBonus,
		"group_id":      pc.GroupID,
	})
}

type trialRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleTrial(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	var req trialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sub, err := s.subUC.ActivateTrial(r.Context(), tenantID, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	sub, err := s.subUC.Get(r.Context(), tenantID, chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.ledgerUC.ListByUser(r.Context(), tenantID, chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type cardInitiateRequest struct {
	UserID       string `json:"user_id"`
	Amount       int64  `json:"amount"`
	PeriodDays   int    `json:"period_days"`
	TrafficGB    int64  `json:"traffic_gb"`
	ExtraDevices int    `json:"extra_devices"`
}

func (s *Server) handleCardInitiate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	var req cardInitiateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var purchase *usecase.PurchaseParams
	if req.PeriodDays > 0 {
		purchase = &usecase.PurchaseParams{
			PeriodDays:   req.PeriodDays,
			TrafficLimit: req.TrafficGB << 30,
			DeviceLimit:  req.ExtraDevices,
		}
	}

	instr, err := s.cardUC.Initiate(r.Context(), tenantID, req.UserID, req.Amount, purchase)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instr)
}

type cardReceiptRequest struct {
	Receipt string `json:"receipt"`
}

func (s *Server) handleCardReceipt(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	var req cardReceiptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.cardUC.SubmitReceipt(r.Context(), tenantID, chi.URLParam(r, "trackingNumber"), req.Receipt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- admin API ----

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.cardUC.ListPending(r.Context(), tenantID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type reviewRequest struct {
	Decision string `json:"decision"` // approve | reject
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.cardUC.Review(r.Context(), tenantID, chi.URLParam(r, "trackingNumber"),
		claims.Subject, usecase.ReviewDecision(req.Decision))
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.IncCardReview(req.Decision)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenantFrom(w, r)
	if !ok {
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	switch period {
	case "day", "week", "month", "year":
	default:
		http.Error(w, "invalid period", http.StatusBadRequest)
		return
	}

	revenue, err := s.ledgerUC.SumByPeriod(r.Context(), tenantID, period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	counts, err := s.subUC.CountByStatus(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.SetSubscriptionsTotal(counts)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":        period,
		"revenue":       revenue,
		"subscriptions": counts,
	})
}

// ---- helpers ----

func (s *Server) tenantFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.TenantID == "" {
		http.Error(w, "token lacks tenant", http.StatusForbidden)
		return "", false
	}
	return claims.TenantID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "bad request", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSubscriptionNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientBalance):
		http.Error(w, "insufficient balance", http.StatusPaymentRequired)
	case errors.Is(err, domain.ErrAlreadyReviewed), errors.Is(err, domain.ErrAlreadyTerminal),
		errors.Is(err, domain.ErrDuplicateEvent), errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrPromoCodeExhausted), errors.Is(err, domain.ErrPromoCodeUsed),
		errors.Is(err, domain.ErrTrialAlreadyUsed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrProviderUnavailable):
		http.Error(w, "payment provider unavailable", http.StatusBadGateway)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
