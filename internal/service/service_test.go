package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage/memory"
	"market-tick-lab/internal/stream/stub"
)

type testHarness struct {
	svc    *Service
	source *stub.StubTickSource
	ticks  *memory.TickStore
	bars   *memory.BarStore
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		source: stub.NewStubTickSource(nil),
		ticks:  memory.NewTickStore(),
		bars:   memory.NewBarStore(),
	}
	h.svc = New(Options{
		Source:           h.source,
		TickStore:        h.ticks,
		BarStore:         h.bars,
		RuleStore:        memory.NewAlertRuleStore(),
		TriggerStore:     memory.NewAlertTriggerStore(),
		FlushInterval:    20 * time.Millisecond,
		ResampleInterval: 20 * time.Millisecond,
	})
	return h
}

func (h *testHarness) push(symbol string, ts int64, price, size float64) {
	h.source.Push(domain.Tick{Symbol: symbol, Timestamp: ts, Price: price, Size: size})
}

func TestService_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t)
	require.NoError(t, h.svc.Start(ctx, []string{"btcusdt"}))

	for i := 0; i < 30; i++ {
		h.push("btcusdt", int64(1000+i*100), 100+float64(i), 1)
	}

	// Flush and resample loops run on a short cadence; ticks and bars
	// must both appear without further prodding.
	require.Eventually(t, func() bool {
		ticks, err := h.svc.QueryTicks(ctx, "btcusdt", 0)
		require.NoError(t, err)
		if len(ticks) != 30 {
			return false
		}
		bars, err := h.svc.QueryBars(ctx, "btcusdt", "1s", 0)
		require.NoError(t, err)
		return len(bars) > 0
	}, 5*time.Second, 10*time.Millisecond)

	symbols, err := h.svc.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"btcusdt"}, symbols)

	stats, err := h.svc.RollingStats(ctx, "btcusdt", 100)
	require.NoError(t, err)
	assert.Equal(t, 30, stats.Count)
	assert.Equal(t, 129.0, stats.Last)

	status := h.svc.GetStatus()
	assert.True(t, status.Running)
	assert.Contains(t, status.Streams, "btcusdt")

	h.svc.Stop()
	assert.False(t, h.svc.GetStatus().Running)
}

func TestService_StopDrainsAndResamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t)
	require.NoError(t, h.svc.Start(ctx, []string{"btcusdt"}))

	h.push("btcusdt", 1000, 100, 1)
	h.push("btcusdt", 2100, 110, 1)

	// Wait for delivery, then stop immediately: the final flush and
	// resample pass must cover both ticks.
	require.Eventually(t, func() bool {
		return h.svc.GetStatus().Streams["btcusdt"].LastSeen == 2100
	}, 5*time.Second, 5*time.Millisecond)

	h.svc.Stop()

	ticks, err := h.svc.QueryTicks(context.Background(), "btcusdt", 0)
	require.NoError(t, err)
	assert.Len(t, ticks, 2)

	bars, err := h.svc.QueryBars(context.Background(), "btcusdt", "1s", 0)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestService_StopWithoutStart(t *testing.T) {
	h := newHarness(t)
	h.svc.Stop() // must not panic or block
}

func TestService_TickFlowFiresAlerts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t)

	rule, err := h.svc.CreateAlertRule(ctx, "btcusdt", "price", ">", 150)
	require.NoError(t, err)

	require.NoError(t, h.svc.Start(ctx, []string{"btcusdt"}))

	h.push("btcusdt", 1000, 100, 1) // below threshold
	h.push("btcusdt", 2000, 200, 1) // fires

	require.Eventually(t, func() bool {
		trigs, err := h.svc.ListTriggeredAlerts(ctx, 0)
		require.NoError(t, err)
		return len(trigs) == 1
	}, 5*time.Second, 5*time.Millisecond)

	trigs, err := h.svc.ListTriggeredAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, trigs[0].RuleID)
	assert.Equal(t, 200.0, trigs[0].Value)

	require.NoError(t, h.svc.DeleteAlertRule(ctx, rule.ID))
	rules, err := h.svc.ListAlertRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	h.svc.Stop()
}

func TestService_QueryBarsRejectsBadTimeframe(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.QueryBars(context.Background(), "btcusdt", "3h", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeframe)
}

func TestService_PairAnalytics(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// Seed stores directly; analytics read persisted ticks, not buffers.
	var batchA, batchB []*domain.Tick
	for i := 0; i < 120; i++ {
		x := 100 + float64((i*7)%13)
		batchA = append(batchA, &domain.Tick{Symbol: "aaausdt", Timestamp: int64(i), Price: 2*x + 3, Size: 1})
		batchB = append(batchB, &domain.Tick{Symbol: "bbbusdt", Timestamp: int64(i), Price: x, Size: 1})
	}
	require.NoError(t, h.ticks.InsertBatch(ctx, batchA))
	require.NoError(t, h.ticks.InsertBatch(ctx, batchB))

	spread, err := h.svc.Spread(ctx, "aaausdt", "bbbusdt", 0, "ols")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, spread.HedgeRatio, 1e-9)

	corr, err := h.svc.Correlation(ctx, "aaausdt", "bbbusdt", 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr.Correlation, 1e-9)

	_, err = h.svc.Spread(ctx, "aaausdt", "bbbusdt", 0, "kalman")
	assert.Error(t, err)
}

func TestService_ResampleNowAndTimeseriesStats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var batch []*domain.Tick
	for i := 0; i < 30; i++ {
		batch = append(batch, &domain.Tick{Symbol: "btcusdt", Timestamp: int64(i * 500), Price: 100 + float64(i%5), Size: 2})
	}
	require.NoError(t, h.ticks.InsertBatch(ctx, batch))

	h.svc.ResampleNow(ctx)

	stats, err := h.svc.TimeseriesStats(ctx, "btcusdt", "1s", 0)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	assert.Nil(t, stats[0].Return)
	if len(stats) > 1 {
		assert.NotNil(t, stats[1].Return)
	}
}
