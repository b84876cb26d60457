package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"market-tools-go/internal/backtest"
	"market-tools-go/internal/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	db    *gorm.DB
	store *backtest.Store
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db, store: backtest.NewStore(db)}
}

// Routes registers every endpoint on a new router.
func (h *APIHandler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/market-data", h.MarketDataHandler).Methods(http.MethodGet)
	api.HandleFunc("/market-data/latest", h.LatestMarketDataHandler).Methods(http.MethodGet)
	api.HandleFunc("/runs", h.RunsHandler).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", h.RunHandler).Methods(http.MethodGet)
	api.HandleFunc("/statistics", h.StatisticsHandler).Methods(http.MethodGet)
	return r
}

// HealthHandler reports that the server is up.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

// MarketDataHandler returns scraped snapshots, most recent first.
// Optional query parameters: coin_id and limit.
func (h *APIHandler) MarketDataHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	q := h.db.WithContext(r.Context()).Order("timestamp desc").Order("id desc").Limit(limit)
	if coin := r.URL.Query().Get("coin_id"); coin != "" {
		q = q.Where("coin_id = ?", coin)
	}

	var rows []models.MarketData
	if err := q.Find(&rows).Error; err != nil {
		h.log.Error("Failed to get market data from database", zap.Error(err))
		http.Error(w, "Failed to get market data", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, rows)
}

// LatestMarketDataHandler returns the newest snapshot of every coin.
func (h *APIHandler) LatestMarketDataHandler(w http.ResponseWriter, r *http.Request) {
	latest := h.db.Model(&models.MarketData{}).Select("MAX(id)").Group("coin_id")

	var rows []models.MarketData
	if err := h.db.WithContext(r.Context()).Where("id IN (?)", latest).Order("coin_id").Find(&rows).Error; err != nil {
		h.log.Error("Failed to get latest market data", zap.Error(err))
		http.Error(w, "Failed to get market data", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, rows)
}

// RunsHandler returns stored backtest runs without their trades.
func (h *APIHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list backtest runs", zap.Error(err))
		http.Error(w, "Failed to get runs", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, runs)
}

// RunHandler returns one backtest run with its trades.
func (h *APIHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, backtest.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to get backtest run", zap.Error(err))
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, run)
}

// StatsDetail holds calculated statistics for a group of simulated trades.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	WinningTrades    int64   `json:"winning_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

// add counts a break-even trade as a win.
func (s *StatsDetail) add(profit float64) {
	s.TotalTrades++
	if profit >= 0 {
		s.WinningTrades++
	}
	s.TotalProfit += profit
}

func (s *StatsDetail) finish() {
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Runs    int64       `json:"runs"`
	Long    StatsDetail `json:"long"`
	Short   StatsDetail `json:"short"`
	AllTime StatsDetail `json:"all_time"`
}

// StatisticsHandler aggregates every stored simulated trade.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var resp StatisticsResponse
	if err := h.db.WithContext(ctx).Model(&models.BacktestRun{}).Count(&resp.Runs).Error; err != nil {
		h.log.Error("Failed to count backtest runs", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	var trades []models.SimulatedTrade
	if err := h.db.WithContext(ctx).Select("direction", "profit").Find(&trades).Error; err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	for _, trade := range trades {
		resp.AllTime.add(trade.Profit)
		switch trade.Direction {
		case "LONG":
			resp.Long.add(trade.Profit)
		case "SHORT":
			resp.Short.add(trade.Profit)
		}
	}
	resp.AllTime.finish()
	resp.Long.finish()
	resp.Short.finish()

	h.writeJSON(w, resp)
}

// limit parses the limit query parameter, writing a 400 when it is invalid.
func (h *APIHandler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return min(n, maxLimit), true
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
