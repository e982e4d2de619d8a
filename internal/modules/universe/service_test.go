package universe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpipe/internal/database"
	"github.com/aristath/marketpipe/internal/database/repositories"
)

func newTestService(t *testing.T) (*Service, *repositories.Gateway) {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	g := repositories.NewGateway(db.Conn(), time.Second, zerolog.Nop())
	return NewService(g.Instruments, g.Prices, nil, zerolog.Nop()), g
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedFromFile(t *testing.T) {
	svc, g := newTestService(t)
	path := writeSeedFile(t, `[
		{"ticker": "msft", "name": "Microsoft", "sector": "Technology"},
		{"ticker": "SPY", "name": "SPDR S&P 500", "asset_class": "ETF"},
		{"ticker": "AAPL", "name": "Apple", "sector": "Technology", "asset_class": "EQUITY"}
	]`)

	n, err := svc.SeedFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tickers, err := svc.ActiveTickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "SPY"}, tickers)

	// Missing asset class defaults, tickers normalize to upper case.
	inst, err := g.Instruments.Get("MSFT")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "EQUITY", inst.AssetClass)
	assert.True(t, inst.Active)
}

func TestSeedFromFileRejectsMalformedJSON(t *testing.T) {
	svc, _ := newTestService(t)
	path := writeSeedFile(t, `{"not": "a list"}`)

	_, err := svc.SeedFromFile(path)
	assert.Error(t, err)
}

func TestWarmBackfillWithoutArchiveIsNoop(t *testing.T) {
	svc, _ := newTestService(t)

	n, err := svc.WarmBackfill("AAPL", 200)
	require.NoError(t, err)
	assert.Zero(t, n)
}
