// Package health exposes the service's HTTP surface: liveness, purchase
// state, the buy entrypoint and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/infra/journal"
	"github.com/availops/creditflow/internal/purchase/engine"
	"github.com/availops/creditflow/internal/purchase/registry"
)

// Buyer drives one purchase to a terminal outcome.
type Buyer interface {
	BuyCredits(ctx context.Context, req engine.BuyRequest) (*domain.Purchase, error)
}

// Server provides HTTP endpoints for health monitoring and purchases.
type Server struct {
	reg     *registry.Registry
	journal journal.Journal
	buyer   Buyer
	server  *http.Server
}

// NewServer creates a new health server. buyer may be nil, in which case the
// buy endpoint is not registered.
func NewServer(reg *registry.Registry, jnl journal.Journal, buyer Buyer, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		reg:     reg,
		journal: jnl,
		buyer:   buyer,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/purchases", s.handlePurchases)
	mux.HandleFunc("/purchases/pending", s.handlePending)
	if buyer != nil {
		mux.HandleFunc("/purchases/buy", s.handleBuy)
	}
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":    "healthy",
		"in_flight": s.reg.InFlight(),
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}

// handlePending lists paid-but-not-credited purchases awaiting manual
// reconciliation. An operator watching this endpoint sees every payment the
// backend was never told about.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	entries, err := s.journal.Unreconciled(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleBuy runs a purchase to its terminal outcome. The call blocks until
// the purchase settles or fails; callers watch progress on /purchases or
// the event channel in the meantime.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}

	var body struct {
		ChainID      int64           `json:"chain_id"`
		TokenAddress string          `json:"token_address"`
		Amount       decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, err := s.buyer.BuyCredits(r.Context(), engine.BuyRequest{
		ChainID:      domain.ChainID(body.ChainID),
		TokenAddress: body.TokenAddress,
		Amount:       body.Amount,
	})
	if err != nil {
		response := map[string]any{
			"error":   engine.UserMessage(err),
			"failure": string(domain.FailureOf(err)),
		}
		if p != nil {
			response["purchase"] = p
		}
		writeJSON(w, http.StatusUnprocessableEntity, response)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
