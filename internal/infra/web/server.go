package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/usecase"
)

// Server exposes three surfaces on one port: provider webhooks (signature
// authenticated), the service API the storefront bot calls (JWT role
// "service"), and the admin review/reporting API (JWT role "admin").
type Server struct {
	reconcileUC usecase.ReconcileUseCase
	purchaseUC  usecase.PurchaseUseCase
	cardUC      usecase.CardToCardUseCase
	promoUC     usecase.PromoUseCase
	subUC       usecase.SubscriptionUseCase
	ledgerUC    usecase.LedgerUseCase
	auth        *AuthManager
	log         *zerolog.Logger

	srv *http.Server
}

func NewServer(
	reconcileUC usecase.ReconcileUseCase,
	purchaseUC usecase.PurchaseUseCase,
	cardUC usecase.CardToCardUseCase,
	promoUC usecase.PromoUseCase,
	subUC usecase.SubscriptionUseCase,
	ledgerUC usecase.LedgerUseCase,
	auth *AuthManager,
	port int,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	s := &Server{
		reconcileUC: reconcileUC,
		purchaseUC:  purchaseUC,
		cardUC:      cardUC,
		promoUC:     promoUC,
		subUC:       subUC,
		ledgerUC:    ledgerUC,
		auth:        auth,
		log:         &l,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Webhooks authenticate by provider signature, not JWT.
	r.Post("/webhooks/{tenantID}/{provider}", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		// Storefront bot backend.
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireRole("service", "admin"))
			r.Post("/purchase/quote", s.handleQuote)
			r.Post("/purchase", s.handlePurchase)
			r.Post("/deposit", s.handleDeposit)
			r.Post("/promo/redeem", s.handlePromoRedeem)
			r.Post("/trial", s.handleTrial)
			r.Get("/subscriptions/{userID}", s.handleGetSubscription)
			r.Get("/users/{userID}/transactions", s.handleListTransactions)
			r.Post("/card/initiate", s.handleCardInitiate)
			r.Post("/card/{trackingNumber}/receipt", s.handleCardReceipt)
		})

		// Review and reporting.
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireRole("admin"))
			r.Get("/reviews", s.handleListReviews)
			r.Post("/reviews/{trackingNumber}", s.handleReview)
			r.Get("/stats", s.handleStats)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
