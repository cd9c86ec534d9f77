package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uhyunpark/agora/params"
	"github.com/uhyunpark/agora/pkg/api"
	"github.com/uhyunpark/agora/pkg/market"
	"github.com/uhyunpark/agora/pkg/policy"
	"github.com/uhyunpark/agora/pkg/sim"
	"github.com/uhyunpark/agora/pkg/storage"
	"github.com/uhyunpark/agora/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "data/agora.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Scenario: who trades ----
	scenario := params.DefaultScenario()
	if cfg.Scenario != "" {
		scenario, err = params.LoadScenario(cfg.Scenario)
		if err != nil {
			sugar.Fatalw("scenario_load_failed", "path", cfg.Scenario, "err", err)
		}
	}
	agents, err := buildAgents(scenario)
	if err != nil {
		sugar.Fatalw("scenario_invalid", "err", err)
	}

	// ---- Persistence (optional) ----
	var recorder sim.Recorder
	var store *storage.RunStore
	if cfg.Store.Enabled {
		store, err = storage.NewRunStore(cfg.Store.Path)
		if err != nil {
			sugar.Fatalw("store_open_failed", "path", cfg.Store.Path, "err", err)
		}
		defer store.Close()
		recorder = store
	}

	// ---- Environment ----
	mkt := market.New(scenario.Goods...)
	env := sim.NewEnvironment(sim.Options{
		Name:            cfg.Sim.Name,
		MaxSteps:        cfg.Sim.MaxSteps,
		MaxEpisodes:     cfg.Sim.MaxEpisodes,
		Seed:            cfg.Sim.Seed,
		DecisionTimeout: cfg.Sim.DecisionTimeout,
		Logger:          sugar,
		Recorder:        recorder,
	})
	if err := env.Add(mkt); err != nil {
		sugar.Fatalw("add_marketplace_failed", "err", err)
	}
	if err := env.Add(agents); err != nil {
		sugar.Fatalw("add_agents_failed", "err", err)
	}
	if err := env.Compile(); err != nil {
		sugar.Fatalw("compile_failed", "err", err)
	}
	if store != nil {
		if err := store.SetRunID(env.RunID()); err != nil {
			sugar.Fatalw("store_run_id_failed", "err", err)
		}
	}
	sugar.Infow("environment_compiled",
		"run_id", env.RunID(),
		"agents", len(agents),
		"goods", mkt.Goods(),
		"max_steps", cfg.Sim.MaxSteps,
		"max_episodes", cfg.Sim.MaxEpisodes,
	)

	// ---- API (optional) ----
	var apiErr <-chan error
	if cfg.API.Enabled {
		srv := api.NewServer(cfg.API.Addr, sugar, env, mkt)
		env.OnStepEnd(func(*sim.Context) { srv.BroadcastStep() })
		apiErr = srv.Start()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- env.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			sugar.Errorw("run_failed", "err", err)
			os.Exit(1)
		}
	case err := <-apiErr:
		sugar.Errorw("api_failed", "err", err)
		os.Exit(1)
	}

	step, episode := env.Counters()
	sugar.Infow("run_complete", "phase", env.Phase().String(), "steps", step, "episodes", episode)
	for _, good := range mkt.Goods() {
		b := mkt.Book(good)
		sugar.Infow("market_summary",
			"good", good,
			"trades", len(b.Trades()),
			"last_price", b.LastPrice(),
			"orders_seen", b.OrderCount(),
		)
	}
	for _, a := range agents {
		sugar.Infow("agent_summary", "agent", a.Name, "inventory", a.Inventory.Snapshot())
	}
}

// buildAgents turns the scenario's specs into live agents. Each spec
// expands into spec.Count copies named "<name>_<i>".
func buildAgents(sc *params.Scenario) ([]*sim.Agent, error) {
	good := tradedGood(sc)
	var agents []*sim.Agent
	for _, spec := range sc.Agents {
		count := spec.Count
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			name := spec.Name
			if count > 1 {
				name = fmt.Sprintf("%s_%d", spec.Name, i)
			}
			pol, err := buildPolicy(spec, good, int64(i))
			if err != nil {
				return nil, fmt.Errorf("agent %q: %w", spec.Name, err)
			}
			agents = append(agents, sim.NewAgent(name, spec.Inventory, pol))
		}
	}
	return agents, nil
}

func buildPolicy(spec params.AgentSpec, good string, ordinal int64) (sim.Policy, error) {
	p := spec.Params
	switch spec.Policy {
	case "buyer":
		return &policy.Buyer{Good: good, Value: p["value"], Start: p["start"], Step: p["step"]}, nil
	case "seller":
		return &policy.Seller{Good: good, Cost: p["cost"], Start: p["start"], Step: p["step"]}, nil
	case "noise":
		seed := p["seed"]
		if seed == 0 {
			seed = ordinal + 1
		}
		return policy.NewNoiseTrader(good, p["base"], p["amplitude"], seed), nil
	case "skip":
		return sim.PolicyFunc(func(context.Context, sim.Observation) (sim.Descriptor, error) {
			return sim.Descriptor{Name: "skip"}, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", spec.Policy)
	}
}

// tradedGood picks the good the scripted policies trade: the scenario's
// declared good if set, otherwise the first non-capital item any agent
// starts with.
func tradedGood(sc *params.Scenario) string {
	if len(sc.Goods) > 0 {
		return sc.Goods[0]
	}
	for _, spec := range sc.Agents {
		for item := range spec.Inventory {
			if item != sim.Capital {
				return item
			}
		}
	}
	return "widget"
}
