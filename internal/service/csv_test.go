package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage/memory"
	"market-tick-lab/internal/stream/stub"
)

func newCSVService() (*Service, *memory.BarStore) {
	bars := memory.NewBarStore()
	svc := New(Options{
		Source:       stub.NewStubTickSource(nil),
		TickStore:    memory.NewTickStore(),
		BarStore:     bars,
		RuleStore:    memory.NewAlertRuleStore(),
		TriggerStore: memory.NewAlertTriggerStore(),
	})
	return svc, bars
}

func TestRenderParseBarsCSV_RoundTrip(t *testing.T) {
	bars := []*domain.Bar{
		{Symbol: "btcusdt", Timeframe: domain.Timeframe1m, BucketStart: 60_000, Open: 100.5, High: 110.25, Low: 99, Close: 105, Volume: 12.75},
		{Symbol: "btcusdt", Timeframe: domain.Timeframe1m, BucketStart: 120_000, Open: 105, High: 106, Low: 101, Close: 102, Volume: 3},
	}

	out := RenderBarsCSV(bars)
	assert.True(t, strings.HasPrefix(out, barsCSVHeader+"\n"))

	parsed, err := ParseBarsCSV(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	for i := range bars {
		assert.Equal(t, *bars[i], *parsed[i])
	}
}

func TestParseBarsCSV_HeaderOptional(t *testing.T) {
	in := "btcusdt,1s,1000,1,2,1,2,5\n"
	parsed, err := ParseBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, int64(1000), parsed[0].BucketStart)
}

func TestParseBarsCSV_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"bad timeframe":  "btcusdt,3h,1000,1,2,1,2,5\n",
		"bad number":     "btcusdt,1s,1000,one,2,1,2,5\n",
		"ohlc violation": "btcusdt,1s,1000,5,4,1,2,5\n", // open above high
		"missing field":  "btcusdt,1s,1000,1,2,1,2\n",
	}

	for name, in := range cases {
		_, err := ParseBarsCSV(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestParseBarsCSV_AlignsBucketStart(t *testing.T) {
	// 61_500 is inside the 1m bucket that starts at 60_000.
	in := "btcusdt,1m,61500,1,2,1,2,5\n"
	parsed, err := ParseBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, int64(60_000), parsed[0].BucketStart)
}

func TestExportImportBars(t *testing.T) {
	ctx := context.Background()
	svc, store := newCSVService()

	imported := []*domain.Bar{
		{Symbol: "btcusdt", Timeframe: domain.Timeframe1s, BucketStart: 1000, Open: 1, High: 2, Low: 1, Close: 2, Volume: 5},
		{Symbol: "btcusdt", Timeframe: domain.Timeframe1s, BucketStart: 2000, Open: 2, High: 3, Low: 2, Close: 3, Volume: 4},
	}

	n, err := svc.ImportBars(ctx, imported)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := svc.ExportBarsCSV(ctx, "btcusdt", "1s", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(strings.TrimRight(out, "\n"), "\n")), "header plus two rows")

	// Re-import replaces, not duplicates.
	imported[0].Close = 1.5
	_, err = svc.ImportBars(ctx, imported)
	require.NoError(t, err)

	stored, err := store.Recent(ctx, "btcusdt", domain.Timeframe1s, 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 1.5, stored[0].Close)
}

func TestImportBars_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, store := newCSVService()

	bad := []*domain.Bar{
		{Symbol: "btcusdt", Timeframe: domain.Timeframe1s, BucketStart: 1000, Open: 5, High: 4, Low: 1, Close: 2, Volume: 5},
	}

	_, err := svc.ImportBars(ctx, bad)
	require.Error(t, err)

	stored, err := store.Recent(ctx, "btcusdt", domain.Timeframe1s, 0)
	require.NoError(t, err)
	assert.Empty(t, stored, "nothing written when validation fails")
}
