package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/paper"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
	"github.com/raphalbongso/polymarket-bot/pkg/storage"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

const (
	defaultFillsLimit = 50
	maxFillsLimit     = 1000
)

type Config struct {
	Account        common.Address
	AllowedOrigins []string
}

// Server exposes the paper account over REST, WebSocket and /metrics.
// It is also a paper.Publisher so the runner can push events through it.
type Server struct {
	cfg     Config
	trader  *paper.Trader
	risk    *risk.Manager
	journal storage.Journal
	router  *mux.Router
	hub     *Hub
	metrics *Metrics
	logger  *zap.SugaredLogger
}

func NewServer(cfg Config, trader *paper.Trader, rm *risk.Manager, journal storage.Journal, logger *zap.SugaredLogger) *Server {
	logger = util.OrNop(logger)
	if journal == nil {
		journal = storage.NewNopJournal()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	s := &Server{
		cfg:     cfg,
		trader:  trader,
		risk:    rm,
		journal: journal,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		metrics: NewMetrics(),
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/account", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/positions", s.handleGetPositions).Methods("GET")
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/fills", s.handleGetFills).Methods("GET")
	api.HandleFunc("/accounts/{address}/fills", s.handleGetAccountFills).Methods("GET")
	api.HandleFunc("/risk", s.handleGetRisk).Methods("GET")
	api.HandleFunc("/report", s.handleGetReport).Methods("GET")
	api.HandleFunc("/kill", s.handleKill).Methods("POST")

	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

func (s *Server) Hub() *Hub           { return s.hub }
func (s *Server) Metrics() *Metrics   { return s.metrics }
func (s *Server) Router() *mux.Router { return s.router }

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the hub and serves until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Infow("api_server_starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Publish implements paper.Publisher: metrics are updated and the event is
// pushed to WebSocket subscribers of the topic.
func (s *Server) Publish(_ context.Context, topic string, payload any) error {
	switch ev := payload.(type) {
	case paper.Heartbeat:
		s.metrics.ObserveHeartbeat(ev)
	case paper.TradeEvent:
		s.metrics.ObserveTrade(ev)
	case paper.SignalEvent:
		s.metrics.ObserveSignal()
	case paper.KillEvent:
		s.metrics.ObserveKill()
	}
	return s.hub.BroadcastToChannel(topic, WSMessage{Type: topic, Data: payload})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	sum := s.trader.Summary()
	equity := sum.Balance
	marks := s.trader.Marks()
	for _, p := range s.trader.Positions() {
		if m, ok := marks[p.TokenID]; ok {
			equity += p.Quantity * m
		} else {
			equity += p.Quantity * p.AvgEntryPrice
		}
	}

	respondJSON(w, AccountInfo{
		Address:          s.cfg.Account.Hex(),
		Balance:          sum.Balance,
		InitialBalance:   sum.InitialBalance,
		RealizedPnL:      sum.TotalRealizedPnL,
		UnrealizedPnL:    sum.UnrealizedPnL,
		TotalEquity:      equity,
		OpenPositions:    sum.OpenPositions,
		RestingOrders:    sum.RestingOrders,
		FilledOrders:     sum.FilledOrders,
		StateHash:        s.trader.StateHash(),
		KillSwitchActive: s.risk.IsKilled(),
	})
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	marks := s.trader.Marks()
	positions := make([]PositionInfo, 0)
	for _, p := range s.trader.Positions() {
		if p.Quantity == 0 {
			continue
		}
		info := PositionInfo{
			TokenID:     p.TokenID,
			Size:        p.Quantity,
			EntryPrice:  p.AvgEntryPrice,
			CostBasis:   p.CostBasis,
			RealizedPnL: p.RealizedPnL,
		}
		if m, ok := marks[p.TokenID]; ok {
			info.MarkPrice = m
			info.UnrealizedPnL = p.UnrealizedPnL(m)
		}
		positions = append(positions, info)
	}
	respondJSON(w, positions)
}

// handleGetOrders lists resting orders, or closed ones with ?status=history.
func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	var orders []account.Order
	switch r.URL.Query().Get("status") {
	case "", "open":
		orders = s.trader.RestingOrders()
	case "history":
		orders = s.trader.OrderHistory()
	default:
		respondError(w, http.StatusBadRequest, "invalid status", "expected open or history")
		return
	}

	out := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderInfo(o))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	o, ok := s.trader.Order(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", id)
		return
	}
	respondJSON(w, toOrderInfo(o))
}

func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	s.writeFills(w, r, s.cfg.Account)
}

func (s *Server) handleGetAccountFills(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	s.writeFills(w, r, common.HexToAddress(addrStr))
}

func (s *Server) writeFills(w http.ResponseWriter, r *http.Request, acct common.Address) {
	limit := defaultFillsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxFillsLimit)
	}

	recs, err := s.journal.RecentFills(acct, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal error", err.Error())
		return
	}
	out := make([]FillInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FillInfo{
			OrderID:     rec.OrderID,
			TokenID:     rec.TokenID,
			Side:        rec.Side.String(),
			Status:      rec.Status.String(),
			FilledQty:   rec.FilledQty,
			AvgPrice:    rec.AvgPrice,
			SlippageBps: rec.SlippageBps,
			RealizedPnL: rec.RealizedPnL,
			Tick:        rec.Tick,
			Timestamp:   rec.Time.UnixMilli(),
		})
	}
	respondJSON(w, out)
}

func (s *Server) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.risk.Report())
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.trader.FinalReport()))
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	var req KillRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "manual kill via api"
	}

	tripped := s.risk.TripKillSwitch(req.Reason)
	s.logger.Warnw("api_kill_request", "reason", req.Reason, "tripped", tripped)
	respondJSON(w, KillResponse{Tripped: tripped, Reason: s.risk.KillSwitch().Reason()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.risk.IsKilled() {
		status = "killed"
	}
	respondJSON(w, map[string]string{"status": status})
}

// ==============================
// Helper Functions
// ==============================

func toOrderInfo(o account.Order) OrderInfo {
	info := OrderInfo{
		ID:           o.ID,
		TokenID:      o.TokenID,
		Side:         o.Side.String(),
		Price:        o.Price,
		Size:         o.Qty,
		Filled:       o.Filled,
		Remaining:    o.Remaining(),
		AvgFillPrice: o.AvgFillPrice,
		Status:       o.Status.String(),
		Timestamp:    o.CreatedAt.UnixMilli(),
	}
	if o.TTL > 0 {
		info.ExpiresAt = o.CreatedAt.Add(o.TTL).UnixMilli()
	}
	return info
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
