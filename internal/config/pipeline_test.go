package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePipelineFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalPipeline = `
providers:
  - name: yahoo
    capabilities: [price_quote, price_history, fundamentals_snapshot, existence_probe]
    keys: ["key-a", "key-b"]
    requests_per_minute: 60
    requests_per_day: 2000
    base_confidence: 0.9
`

func TestLoadPipelineDefaults(t *testing.T) {
	path := writePipelineFile(t, minimalPipeline)

	p, err := LoadPipeline(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, p.APICallBudgetTotal)
	assert.Equal(t, 8, p.WorkerConcurrency)
	assert.Equal(t, 100, p.MinHistoryBars)
	assert.Equal(t, 200, p.TargetHistoryBars)
	assert.Equal(t, 2, p.DelistingMinAgreement)
	assert.Equal(t, 0.70, p.ConfidenceThreshold)
	assert.Equal(t, 30*time.Minute, p.PriorityDeadlines["P1"].Std())
	assert.Equal(t, 15*time.Second, p.AdapterCallTimeout.Std())
}

func TestLoadPipelineOverrides(t *testing.T) {
	path := writePipelineFile(t, minimalPipeline+`
api_call_budget_total: 123
worker_concurrency: 4
priority_deadlines:
  P1: 1m
  P2: 1m
  P3: 1s
  P4: 1m
  P5: 1m
  P6: 1m
`)

	p, err := LoadPipeline(path)
	require.NoError(t, err)

	assert.Equal(t, 123, p.APICallBudgetTotal)
	assert.Equal(t, 4, p.WorkerConcurrency)
	assert.Equal(t, time.Second, p.PriorityDeadlines["P3"].Std())
}

func TestLoadPipelineExpandsEnvKeys(t *testing.T) {
	t.Setenv("TEST_PIPELINE_KEY", "secret-token")
	path := writePipelineFile(t, `
providers:
  - name: yahoo
    capabilities: [price_quote]
    keys: ["${TEST_PIPELINE_KEY}"]
`)

	p, err := LoadPipeline(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", p.Providers[0].Keys[0])
}

func TestValidateRejectsBadWeights(t *testing.T) {
	p := DefaultPipeline()
	p.Providers = []ProviderConfig{{Name: "yahoo", Keys: []string{"k"}}}
	p.ScoringWeights["fundamental"] = 0.5 // now sums to 1.25

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidateRejectsMissingDeadline(t *testing.T) {
	p := DefaultPipeline()
	p.Providers = []ProviderConfig{{Name: "yahoo", Keys: []string{"k"}}}
	delete(p.PriorityDeadlines, "P4")

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P4")
}

func TestValidateRejectsNoProviders(t *testing.T) {
	p := DefaultPipeline()
	require.Error(t, p.Validate())
}

func TestRangeForFallsBackToDefault(t *testing.T) {
	p := DefaultPipeline()

	r, ok := p.RangeFor("Technology", "pe")
	require.True(t, ok)
	assert.Equal(t, 400.0, r.Max)

	r, ok = p.RangeFor("Utilities", "pe")
	require.True(t, ok)
	assert.Equal(t, 200.0, r.Max)

	_, ok = p.RangeFor("Utilities", "nonexistent_ratio")
	assert.False(t, ok)
}
