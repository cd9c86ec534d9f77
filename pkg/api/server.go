package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/agora/pkg/market"
	"github.com/uhyunpark/agora/pkg/sim"
)

// Server exposes a read-only HTTP view of a running simulation plus a
// websocket stream of step updates. All handlers read through
// Environment.View, so they are safe to serve while the loop runs.
type Server struct {
	log  *zap.SugaredLogger
	env  *sim.Environment
	mkt  *market.Marketplace
	hub  *Hub
	http *http.Server
}

func NewServer(addr string, log *zap.SugaredLogger, env *sim.Environment, mkt *market.Marketplace) *Server {
	s := &Server{
		log: log,
		env: env,
		mkt: mkt,
		hub: NewHub(log),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ws", s.hub.serveWs)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods("GET")
	v1.HandleFunc("/agents", s.handleAgents).Methods("GET")
	v1.HandleFunc("/agents/{name}", s.handleAgent).Methods("GET")
	v1.HandleFunc("/goods", s.handleGoods).Methods("GET")
	v1.HandleFunc("/goods/{good}/book", s.handleBook).Methods("GET")
	v1.HandleFunc("/goods/{good}/quotes", s.handleQuotes).Methods("GET")
	v1.HandleFunc("/goods/{good}/trades", s.handleTrades).Methods("GET")
	v1.HandleFunc("/goods/{good}/stats", s.handleStats).Methods("GET")
	v1.HandleFunc("/log", s.handleLog).Methods("GET")

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}).Handler(r)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the hub and the HTTP listener. It returns immediately;
// listen errors surface on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go s.hub.Run()
	go func() {
		s.log.Infow("api_listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	return errc
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// BroadcastStep pushes the current calendar and quotes to websocket
// clients. Wire it to Environment.OnStepEnd.
func (s *Server) BroadcastStep() {
	var upd StepUpdate
	s.env.View(func(ctx *sim.Context) {
		upd = StepUpdate{
			Type:    "step",
			Step:    ctx.Step,
			Episode: ctx.Episode,
			Phase:   s.env.Phase().String(),
			Quotes:  s.mkt.Quotes(),
		}
	})
	s.hub.Broadcast(upd)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var info StatusInfo
	s.env.View(func(ctx *sim.Context) {
		info = StatusInfo{
			RunID:   s.env.RunID(),
			Name:    s.env.Name(),
			Phase:   s.env.Phase().String(),
			Step:    ctx.Step,
			Episode: ctx.Episode,
			Agents:  len(ctx.Agents()),
			Goods:   s.mkt.Goods(),
		}
	})
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	var out []AgentInfo
	s.env.View(func(ctx *sim.Context) {
		for _, a := range ctx.Agents() {
			out = append(out, agentInfo(a))
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var (
		info  AgentInfo
		found bool
	)
	s.env.View(func(ctx *sim.Context) {
		if a := ctx.AgentByName(name); a != nil {
			info, found = agentInfo(a), true
		}
	})
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown agent", Detail: name})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGoods(w http.ResponseWriter, _ *http.Request) {
	var quotes map[string]sim.Quote
	s.env.View(func(*sim.Context) {
		quotes = s.mkt.Quotes()
	})
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	good := mux.Vars(r)["good"]
	var (
		snap  BookSnapshot
		found bool
	)
	s.env.View(func(*sim.Context) {
		b, ok := s.mkt.Lookup(good)
		if !ok {
			return
		}
		snap = BookSnapshot{
			Good:      good,
			Bids:      b.BidLevels(),
			Asks:      b.AskLevels(),
			LastPrice: b.LastPrice(),
			Trades:    len(b.Trades()),
		}
		found = true
	})
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown good", Detail: good})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	good := mux.Vars(r)["good"]
	var (
		hist  QuoteHistory
		found bool
	)
	s.env.View(func(*sim.Context) {
		b, ok := s.mkt.Lookup(good)
		if !ok {
			return
		}
		hist = QuoteHistory{Good: good, Bids: b.BestBidHistory(), Asks: b.BestAskHistory()}
		found = true
	})
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown good", Detail: good})
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	good := mux.Vars(r)["good"]
	limit := queryInt(r, "limit", 100)
	var (
		trades []sim.Trade
		found  bool
	)
	s.env.View(func(*sim.Context) {
		b, ok := s.mkt.Lookup(good)
		if !ok {
			return
		}
		trades = b.Trades()
		found = true
	})
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown good", Detail: good})
		return
	}
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	good := mux.Vars(r)["good"]
	period := queryInt(r, "period", 5)
	var (
		info  StatsInfo
		found bool
	)
	s.env.View(func(*sim.Context) {
		b, ok := s.mkt.Lookup(good)
		if !ok {
			return
		}
		info = StatsInfo{
			Good:     good,
			Period:   period,
			TradeSMA: market.SMA(market.TradePrices(b.Trades()), period),
			MidSMA:   market.SMA(market.Mid(b.BestBidHistory(), b.BestAskHistory()), period),
		}
		found = true
	})
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown good", Detail: good})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	records := s.env.ActionLog(limit)
	writeJSON(w, http.StatusOK, records)
}

func agentInfo(a *sim.Agent) AgentInfo {
	return AgentInfo{
		ID:        int(a.ID),
		Name:      a.Name,
		Inventory: a.Inventory.Snapshot(),
		Actions:   len(a.History),
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
