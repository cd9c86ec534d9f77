package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Sim struct {
	Name        string
	MaxSteps    int
	MaxEpisodes int
	Seed        int64
	// DecisionTimeout bounds how long one agent's policy may think
	// before its turn is skipped.
	DecisionTimeout time.Duration
}

type API struct {
	Enabled bool
	Addr    string
}

type Store struct {
	Enabled bool
	Path    string
}

type Config struct {
	Sim      Sim
	API      API
	Store    Store
	LogFile  string // empty means stdout only
	Scenario string // path to a scenario yaml; empty uses the built-in default
}

func Default() Config {
	return Config{
		Sim: Sim{
			Name:            "agora",
			MaxSteps:        50,
			MaxEpisodes:     1,
			Seed:            1,
			DecisionTimeout: 30 * time.Second,
		},
		API: API{
			Enabled: true,
			Addr:    ":8080",
		},
		Store: Store{
			Enabled: false,
			Path:    "data/run",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Sim.Name = getEnv("SIM_NAME", cfg.Sim.Name)
	if v := os.Getenv("SIM_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sim.MaxSteps = n
		}
	}
	if v := os.Getenv("SIM_MAX_EPISODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sim.MaxEpisodes = n
		}
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Sim.Seed = n
		}
	}
	if v := os.Getenv("SIM_DECISION_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Sim.DecisionTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("API_ENABLED"); v != "" {
		cfg.API.Enabled = v == "true"
	}
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)

	if v := os.Getenv("STORE_ENABLED"); v != "" {
		cfg.Store.Enabled = v == "true"
	}
	cfg.Store.Path = getEnv("STORE_PATH", cfg.Store.Path)

	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.Scenario = getEnv("SCENARIO_PATH", cfg.Scenario)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
