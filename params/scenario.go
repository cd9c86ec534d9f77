package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario declares the population of a run: who trades, with what
// starting inventory, driven by which policy. It is plain data; the
// entrypoint turns it into agents.
type Scenario struct {
	Goods  []string    `yaml:"goods,omitempty"` // optional; inferred from inventories when empty
	Agents []AgentSpec `yaml:"agents"`
}

// AgentSpec expands into Count agents named "<name>_<i>" (or just
// Name when Count is 1).
type AgentSpec struct {
	Name      string           `yaml:"name"`
	Count     int              `yaml:"count,omitempty"`
	Policy    string           `yaml:"policy"` // buyer | seller | noise | skip
	Inventory map[string]int64 `yaml:"inventory"`
	Params    map[string]int64 `yaml:"params,omitempty"` // policy knobs: value, cost, start, step, base, amplitude
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if len(sc.Agents) == 0 {
		return fmt.Errorf("scenario has no agents")
	}
	seen := make(map[string]bool)
	for i, a := range sc.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent %d: missing name", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("agent %d: duplicate name %q", i, a.Name)
		}
		seen[a.Name] = true
		if a.Count < 0 {
			return fmt.Errorf("agent %q: negative count", a.Name)
		}
		switch a.Policy {
		case "buyer", "seller", "noise", "skip":
		default:
			return fmt.Errorf("agent %q: unknown policy %q", a.Name, a.Policy)
		}
	}
	return nil
}

// DefaultScenario is a small two-sided widget market: three buyers
// with cash, three sellers with stock, and one noise trader on both
// sides.
func DefaultScenario() *Scenario {
	return &Scenario{
		Agents: []AgentSpec{
			{
				Name:      "buyer",
				Count:     3,
				Policy:    "buyer",
				Inventory: map[string]int64{"capital": 1000},
				Params:    map[string]int64{"value": 100, "step": 5},
			},
			{
				Name:      "seller",
				Count:     3,
				Policy:    "seller",
				Inventory: map[string]int64{"capital": 0, "widget": 20},
				Params:    map[string]int64{"cost": 50, "step": 5},
			},
			{
				Name:      "noise",
				Count:     1,
				Policy:    "noise",
				Inventory: map[string]int64{"capital": 500, "widget": 10},
				Params:    map[string]int64{"base": 75, "amplitude": 20},
			},
		},
	}
}
