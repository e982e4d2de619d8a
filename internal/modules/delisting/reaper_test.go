package delisting

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpipe/internal/clients"
)

type fakeProber struct {
	verdicts map[string]clients.Outcome
}

func (f *fakeProber) ProbeAll(_ context.Context, _ string) map[string]clients.Outcome {
	return f.verdicts
}

type fakeDeleter struct {
	deleted []string
}

func (f *fakeDeleter) DeleteTicker(ticker string) error {
	f.deleted = append(f.deleted, ticker)
	return nil
}

func TestShouldDelist(t *testing.T) {
	tests := []struct {
		name     string
		verdicts map[string]clients.Outcome
		expected bool
	}{
		{
			name: "two not_found and no ok delists",
			verdicts: map[string]clients.Outcome{
				"yahoo":   clients.OutcomeNotFound,
				"finnhub": clients.OutcomeNotFound,
			},
			expected: true,
		},
		{
			name: "one ok vetoes even with two not_found",
			verdicts: map[string]clients.Outcome{
				"yahoo":        clients.OutcomeNotFound,
				"finnhub":      clients.OutcomeNotFound,
				"alphavantage": clients.OutcomeOK,
			},
			expected: false,
		},
		{
			name: "single not_found is not enough",
			verdicts: map[string]clients.Outcome{
				"yahoo": clients.OutcomeNotFound,
			},
			expected: false,
		},
		{
			name: "rate limited probes are not evidence",
			verdicts: map[string]clients.Outcome{
				"yahoo":        clients.OutcomeNotFound,
				"finnhub":      clients.OutcomeRateLimited,
				"alphavantage": clients.OutcomeTransient,
			},
			expected: false,
		},
		{
			name:     "no verdicts at all never delists",
			verdicts: map[string]clients.Outcome{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReaper(&fakeProber{verdicts: tt.verdicts}, &fakeDeleter{}, 2, zerolog.Nop())
			assert.Equal(t, tt.expected, r.ShouldDelist(tt.verdicts))
		})
	}
}

func TestEvaluateDeletesOnAgreement(t *testing.T) {
	deleter := &fakeDeleter{}
	r := NewReaper(&fakeProber{verdicts: map[string]clients.Outcome{
		"yahoo":   clients.OutcomeNotFound,
		"finnhub": clients.OutcomeNotFound,
	}}, deleter, 2, zerolog.Nop())

	removed, err := r.Evaluate(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"ZZZZ"}, deleter.deleted)
}

func TestEvaluateKeepsTickerWithoutAgreement(t *testing.T) {
	deleter := &fakeDeleter{}
	r := NewReaper(&fakeProber{verdicts: map[string]clients.Outcome{
		"yahoo": clients.OutcomeNotFound,
	}}, deleter, 2, zerolog.Nop())

	removed, err := r.Evaluate(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, deleter.deleted)
}

func TestReapStopsOnCancelledContext(t *testing.T) {
	deleter := &fakeDeleter{}
	r := NewReaper(&fakeProber{verdicts: map[string]clients.Outcome{
		"yahoo":   clients.OutcomeNotFound,
		"finnhub": clients.OutcomeNotFound,
	}}, deleter, 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	delisted := r.Reap(ctx, []string{"AAA", "BBB"})
	assert.Empty(t, delisted)
}
