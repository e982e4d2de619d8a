package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ProviderConfig describes one external data provider: the capabilities it
// serves, its credentials and per-key quotas, and the base confidence
// assigned to values it returns.
type ProviderConfig struct {
	Name         string   `yaml:"name"`
	Capabilities []string `yaml:"capabilities"`
	// Keys may reference environment variables with ${VAR} syntax so
	// credentials stay out of the YAML file.
	Keys              []string `yaml:"keys"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	RequestsPerDay    int      `yaml:"requests_per_day"`
	BaseConfidence    float64  `yaml:"base_confidence"`
}

// RatioRange bounds a ratio's plausible values for a sector.
type RatioRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Pipeline is the structured configuration surface of the daily run.
type Pipeline struct {
	Timezone       string           `yaml:"timezone"`
	DailySchedule  string           `yaml:"daily_schedule"`
	Holidays       []string         `yaml:"holidays"` // extra closure dates, "2006-01-02"
	UniverseSource string           `yaml:"universe_source"`
	Providers      []ProviderConfig `yaml:"providers"`

	PriorityDeadlines map[string]Duration `yaml:"priority_deadlines"` // P1..P6

	APICallBudgetTotal int `yaml:"api_call_budget_total"`
	WorkerConcurrency  int `yaml:"worker_concurrency"`

	MinHistoryBars    int `yaml:"min_history_bars"`
	TargetHistoryBars int `yaml:"target_history_bars"`

	DelistingMinAgreement int `yaml:"delisting_min_agreement"`

	ScoringWeights      map[string]float64 `yaml:"scoring_weights"`
	ConfidenceThreshold float64            `yaml:"confidence_threshold"`

	EarningsWindowDays int  `yaml:"earnings_window_days"`
	ForceRun           bool `yaml:"force_run"`

	AdapterCallTimeout Duration `yaml:"adapter_call_timeout"`
	DBTxTimeout        Duration `yaml:"db_tx_timeout"`
	RunHardCap         Duration `yaml:"run_hard_cap"`

	// sector -> ratio -> plausible range; "default" is the fallback sector.
	SectorRanges map[string]map[string]RatioRange `yaml:"sector_ranges"`
}

// DefaultPipeline returns the documented defaults. LoadPipeline starts from
// these so a sparse YAML file only needs to override what it changes.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Timezone:       "America/New_York",
		DailySchedule:  "30 17 * * MON-FRI",
		UniverseSource: "./config/universe.json",
		PriorityDeadlines: map[string]Duration{
			"P1": Duration(30 * time.Minute),
			"P2": Duration(15 * time.Minute),
			"P3": Duration(20 * time.Minute),
			"P4": Duration(10 * time.Minute),
			"P5": Duration(15 * time.Minute),
			"P6": Duration(10 * time.Minute),
		},
		APICallBudgetTotal:    5000,
		WorkerConcurrency:     8,
		MinHistoryBars:        100,
		TargetHistoryBars:     200,
		DelistingMinAgreement: 2,
		ScoringWeights: map[string]float64{
			"fundamental": 0.25,
			"technical":   0.20,
			"value":       0.20,
			"signal":      0.10,
			"risk":        0.10,
			"vwap_sr":     0.15,
		},
		ConfidenceThreshold: 0.70,
		EarningsWindowDays:  7,
		AdapterCallTimeout:  Duration(15 * time.Second),
		DBTxTimeout:         Duration(10 * time.Second),
		RunHardCap:          Duration(3 * time.Hour),
		SectorRanges: map[string]map[string]RatioRange{
			"default": {
				"pe":           {Min: 0, Max: 200},
				"pb":           {Min: 0, Max: 50},
				"ps":           {Min: 0, Max: 60},
				"ev_to_ebitda": {Min: 0, Max: 100},
				"peg":          {Min: 0, Max: 10},
				"roe":          {Min: -2, Max: 2},
				"debt_to_equity": {Min: 0, Max: 20},
				"current_ratio":  {Min: 0, Max: 15},
			},
			"Technology": {
				"pe": {Min: 0, Max: 400},
				"ps": {Min: 0, Max: 100},
			},
			"Financial Services": {
				"debt_to_equity": {Min: 0, Max: 40},
			},
		},
	}
}

// LoadPipeline reads and validates the YAML pipeline configuration,
// expanding ${VAR} references in credential keys.
func LoadPipeline(path string) (*Pipeline, error) {
	p := DefaultPipeline()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}

	for i := range p.Providers {
		for j, key := range p.Providers[i].Keys {
			p.Providers[i].Keys[j] = os.ExpandEnv(key)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate enforces the invariants the orchestrator depends on. Violations
// are fatal at startup.
func (p *Pipeline) Validate() error {
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
	}
	if len(p.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	for _, prov := range p.Providers {
		if prov.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if len(prov.Keys) == 0 {
			return fmt.Errorf("provider %s has no credentials", prov.Name)
		}
	}
	if p.APICallBudgetTotal <= 0 {
		return fmt.Errorf("api_call_budget_total must be positive")
	}
	if p.WorkerConcurrency <= 0 {
		return fmt.Errorf("worker_concurrency must be positive")
	}
	if p.MinHistoryBars <= 0 || p.TargetHistoryBars < p.MinHistoryBars {
		return fmt.Errorf("history bar thresholds invalid: min=%d target=%d",
			p.MinHistoryBars, p.TargetHistoryBars)
	}
	if p.DelistingMinAgreement < 1 {
		return fmt.Errorf("delisting_min_agreement must be at least 1")
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0, 1]")
	}

	var sum float64
	for _, w := range p.ScoringWeights {
		if w < 0 {
			return fmt.Errorf("scoring weights must be non-negative")
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}

	for _, name := range []string{"P1", "P2", "P3", "P4", "P5", "P6"} {
		if d, ok := p.PriorityDeadlines[name]; !ok || d.Std() <= 0 {
			return fmt.Errorf("missing or invalid deadline for %s", name)
		}
	}

	return nil
}

// Weight returns a scoring weight by name, 0 when absent.
func (p *Pipeline) Weight(name string) float64 {
	return p.ScoringWeights[name]
}

// RangeFor returns the plausible range for a ratio in a sector, falling back
// to the default sector. ok is false when neither defines the ratio.
func (p *Pipeline) RangeFor(sector, ratio string) (RatioRange, bool) {
	if ranges, ok := p.SectorRanges[sector]; ok {
		if r, ok := ranges[ratio]; ok {
			return r, true
		}
	}
	if ranges, ok := p.SectorRanges["default"]; ok {
		if r, ok := ranges[ratio]; ok {
			return r, true
		}
	}
	return RatioRange{}, false
}
