package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"bandtest/internal/backtest"
	"bandtest/internal/config"
	"bandtest/internal/domain"
	"bandtest/internal/report"
	"bandtest/internal/store"
	"bandtest/internal/trace"
	"bandtest/internal/util"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handlers serves the HTTP JSON API. Every backtest request runs a fresh
// simulation; no state is shared between requests.
type Handlers struct {
	bt       *backtest.Backtester
	profiles store.ProfileStore
	defaults config.BacktestConfig
	log      *slog.Logger
}

// NewHandlers creates Handlers backed by the given backtester and profile
// store. defaults fill omitted request fields.
func NewHandlers(bt *backtest.Backtester, profiles store.ProfileStore, defaults config.BacktestConfig, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{bt: bt, profiles: profiles, defaults: defaults, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/backtest", h.handleBacktest)
	mux.HandleFunc("GET /api/v1/bars", h.handleBars)
	mux.HandleFunc("GET /api/v1/profiles", h.handleProfiles)
	mux.HandleFunc("GET /api/v1/strategies", h.handleStrategies)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (h *Handlers) Handler() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// Run executes a wire request. It is shared by the HTTP and gRPC surfaces.
func (h *Handlers) Run(ctx context.Context, in RunRequest) (*RunResponse, error) {
	req, err := in.toRequest(h.defaults)
	if err != nil {
		return nil, err
	}
	res, err := h.bt.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RunResponse{
		RunID:   uuid.NewString(),
		Summary: report.Summarize(res),
		Result:  res,
	}, nil
}

func (h *Handlers) handleBacktest(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "api.backtest")
	defer span.End()

	var in RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}

	resp, err := h.Run(ctx, in)
	if err != nil {
		h.fail(w, "backtest", err)
		return
	}
	h.log.Info("backtest served", "run_id", resp.RunID, "symbol", resp.Result.Symbol)
	writeJSON(w, resp)
}

// handleBars returns the bars a backtest over [start, end] would consume,
// warm-up window included.
func (h *Handlers) handleBars(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "api.bars")
	defer span.End()

	q := r.URL.Query()
	symbol := pick(q.Get("symbol"), h.defaults.Symbol)
	source := pick(q.Get("source"), h.defaults.Source)
	start, err := parseDate("start", pick(q.Get("start"), h.defaults.StartDate))
	if err != nil {
		h.fail(w, "bars", err)
		return
	}
	end, err := parseDate("end", pick(q.Get("end"), h.defaults.EndDate))
	if err != nil {
		h.fail(w, "bars", err)
		return
	}
	if end.Before(start) {
		h.fail(w, "bars", domain.NewFieldError(domain.ErrInvalidRange, "end", q.Get("end")))
		return
	}
	if days := util.DaysBetween(start, end); days > backtest.MaxRangeDays {
		h.fail(w, "bars", domain.NewFieldError(domain.ErrInvalidParameters, "end",
			fmt.Sprintf("range of %d days exceeds %d", days, backtest.MaxRangeDays)))
		return
	}

	bars, err := h.bt.Bars(ctx, source, symbol, start, end)
	if err != nil {
		h.fail(w, "bars", err)
		return
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	writeJSON(w, BarsResponse{Symbol: strings.ToUpper(symbol), Source: source, Bars: bars})
}

func (h *Handlers) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListProfiles(r.Context())
	if err != nil {
		h.fail(w, "profiles", err)
		return
	}
	if profiles == nil {
		profiles = []domain.SymbolProfile{}
	}
	writeJSON(w, ProfilesResponse{Profiles: profiles})
}

func (h *Handlers) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: h.bt.Strategies(), Sources: h.bt.Sources()})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", "error", err)
	} else {
		h.log.Debug(op+" rejected", "status", status, "error", err)
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = op + " failed"
	}
	writeError(w, status, msg)
}
