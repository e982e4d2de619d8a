package analyst

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/marketpipe/internal/domain"
)

func TestConsensusScore(t *testing.T) {
	tests := []struct {
		name     string
		c        domain.AnalystConsensus
		expected float64
	}{
		{
			name:     "unanimous strong buy",
			c:        domain.AnalystConsensus{StrongBuy: 12},
			expected: 1.0,
		},
		{
			name:     "unanimous strong sell",
			c:        domain.AnalystConsensus{StrongSell: 7},
			expected: 0.0,
		},
		{
			name:     "all hold is neutral",
			c:        domain.AnalystConsensus{Hold: 20},
			expected: 0.5,
		},
		{
			name:     "no coverage is neutral",
			c:        domain.AnalystConsensus{},
			expected: 0.5,
		},
		{
			name:     "buy leaning mix",
			c:        domain.AnalystConsensus{StrongBuy: 4, Buy: 4, Hold: 2},
			expected: (12.0/20.0 + 1) / 2,
		},
		{
			name:     "balanced mix cancels out",
			c:        domain.AnalystConsensus{StrongBuy: 3, StrongSell: 3, Hold: 4},
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ConsensusScore(tt.c), 1e-9)
		})
	}
}
