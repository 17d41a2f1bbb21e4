package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"unxcore/internal/observability"
	"unxcore/internal/query"
)

// HTTPServer serves the read-side query API as HTTP/JSON over the
// projection tables, plus health and metrics endpoints.
type HTTPServer struct {
	addr          string
	queryService  *query.Service
	healthChecker *observability.HealthChecker
	metrics       *observability.Metrics
	httpServer    *http.Server
}

func NewHTTPServer(addr string, qs *query.Service, hc *observability.HealthChecker, metrics *observability.Metrics) *HTTPServer {
	return &HTTPServer{
		addr:          addr,
		queryService:  qs,
		healthChecker: hc,
		metrics:       metrics,
	}
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/balances", s.instrument("balances", s.handleBalances))
	mux.HandleFunc("GET /v1/positions", s.instrument("positions", s.handlePositions))
	mux.HandleFunc("GET /v1/fills", s.instrument("fills", s.handleFills))
	mux.HandleFunc("GET /v1/funding", s.instrument("funding", s.handleFunding))
	mux.HandleFunc("GET /v1/rewards/points", s.instrument("reward_points", s.handleRewardPoints))
	mux.HandleFunc("GET /v1/journal", s.instrument("journal", s.handleJournal))
	mux.HandleFunc("GET /v1/integrity", s.instrument("integrity", s.handleIntegrity))

	mux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
	mux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

func (s *HTTPServer) handleBalances(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		asset = "USDC"
	}

	bal, err := s.queryService.GetBalance(r.Context(), owner, asset)
	if err != nil {
		s.queryError(w, "balances", err)
		return
	}
	writeJSON(w, bal)
}

func (s *HTTPServer) handlePositions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	positions, err := s.queryService.GetPositions(r.Context(), owner)
	if err != nil {
		s.queryError(w, "positions", err)
		return
	}
	writeJSON(w, map[string]interface{}{"positions": positions})
}

func (s *HTTPServer) handleFills(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market is required")
		return
	}

	fills, err := s.queryService.GetMarketFills(r.Context(), market, limitParam(r, 100), cursorParam(r))
	if err != nil {
		s.queryError(w, "fills", err)
		return
	}
	writeJSON(w, map[string]interface{}{"fills": fills})
}

func (s *HTTPServer) handleFunding(w http.ResponseWriter, r *http.Request) {
	market := r.URL.Query().Get("market")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market is required")
		return
	}

	history, err := s.queryService.GetFundingHistory(r.Context(), market, limitParam(r, 100))
	if err != nil {
		s.queryError(w, "funding", err)
		return
	}
	writeJSON(w, map[string]interface{}{"funding": history})
}

func (s *HTTPServer) handleRewardPoints(w http.ResponseWriter, r *http.Request) {
	epochStr := r.URL.Query().Get("epoch")
	epoch, err := strconv.ParseInt(epochStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "epoch is required")
		return
	}

	standings, err := s.queryService.GetRewardPoints(r.Context(), epoch)
	if err != nil {
		s.queryError(w, "reward_points", err)
		return
	}
	writeJSON(w, map[string]interface{}{"epoch": epoch, "standings": standings})
}

func (s *HTTPServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	entries, err := s.queryService.GetJournalHistory(r.Context(), owner, limitParam(r, 100), cursorParam(r))
	if err != nil {
		s.queryError(w, "journal", err)
		return
	}
	writeJSON(w, map[string]interface{}{"journal": entries})
}

func (s *HTTPServer) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queryService.VerifyIntegrity(r.Context())
	if err != nil {
		s.queryError(w, "integrity", err)
		return
	}
	writeJSON(w, report)
}

func (s *HTTPServer) queryError(w http.ResponseWriter, endpoint string, err error) {
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
	log.Warn().Err(err).Str("endpoint", endpoint).Msg("query failed")
	writeError(w, http.StatusInternalServerError, "query failed")
}

func limitParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit <= 0 || limit > 1000 {
		return def
	}
	return limit
}

func cursorParam(r *http.Request) *int64 {
	v := r.URL.Query().Get("before")
	if v == "" {
		return nil
	}
	seq, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &seq
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
