package params

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Sim.Name != "agora" {
		t.Fatalf("name = %q", cfg.Sim.Name)
	}
	if cfg.Sim.MaxSteps <= 0 || cfg.Sim.MaxEpisodes <= 0 {
		t.Fatalf("calendar defaults = %d/%d, want positive", cfg.Sim.MaxSteps, cfg.Sim.MaxEpisodes)
	}
	if cfg.Sim.DecisionTimeout <= 0 {
		t.Fatalf("decision timeout = %v, want positive", cfg.Sim.DecisionTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIM_NAME", "bazaar")
	t.Setenv("SIM_MAX_STEPS", "7")
	t.Setenv("SIM_MAX_EPISODES", "3")
	t.Setenv("SIM_SEED", "99")
	t.Setenv("SIM_DECISION_TIMEOUT_MS", "250")
	t.Setenv("API_ENABLED", "false")
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("STORE_ENABLED", "true")
	t.Setenv("STORE_PATH", "/tmp/run")

	cfg := LoadFromEnv("")
	if cfg.Sim.Name != "bazaar" {
		t.Fatalf("name = %q", cfg.Sim.Name)
	}
	if cfg.Sim.MaxSteps != 7 || cfg.Sim.MaxEpisodes != 3 {
		t.Fatalf("calendar = %d/%d, want 7/3", cfg.Sim.MaxSteps, cfg.Sim.MaxEpisodes)
	}
	if cfg.Sim.Seed != 99 {
		t.Fatalf("seed = %d, want 99", cfg.Sim.Seed)
	}
	if cfg.Sim.DecisionTimeout != 250*time.Millisecond {
		t.Fatalf("timeout = %v, want 250ms", cfg.Sim.DecisionTimeout)
	}
	if cfg.API.Enabled || cfg.API.Addr != ":9999" {
		t.Fatalf("api = %+v", cfg.API)
	}
	if !cfg.Store.Enabled || cfg.Store.Path != "/tmp/run" {
		t.Fatalf("store = %+v", cfg.Store)
	}
}

func TestInvalidEnvValuesKeepDefaults(t *testing.T) {
	t.Setenv("SIM_MAX_STEPS", "not-a-number")
	t.Setenv("SIM_MAX_EPISODES", "-5")

	cfg := LoadFromEnv("")
	def := Default()
	if cfg.Sim.MaxSteps != def.Sim.MaxSteps {
		t.Fatalf("max steps = %d, want default %d", cfg.Sim.MaxSteps, def.Sim.MaxSteps)
	}
	if cfg.Sim.MaxEpisodes != def.Sim.MaxEpisodes {
		t.Fatalf("max episodes = %d, want default %d", cfg.Sim.MaxEpisodes, def.Sim.MaxEpisodes)
	}
}
