// Package service wires ingestion, resampling, analytics and alerting
// into one facade with a shared lifecycle. Callers (CLIs, HTTP layers)
// talk to the Service; subsystems never talk to each other directly,
// only through the hooks installed here.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"market-tick-lab/internal/alerting"
	"market-tick-lab/internal/analytics"
	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/ingestion"
	"market-tick-lab/internal/observability"
	"market-tick-lab/internal/resample"
	"market-tick-lab/internal/storage"
	"market-tick-lab/internal/stream"
)

// Options contains configuration for creating a Service.
type Options struct {
	Source       stream.Source
	TickStore    storage.TickStore
	BarStore     storage.BarStore
	RuleStore    storage.AlertRuleStore
	TriggerStore storage.AlertTriggerStore

	FlushInterval    time.Duration // defaults to ingestion.DefaultFlushInterval
	ResampleInterval time.Duration // defaults to resample.DefaultInterval
	BufferCapacity   int
	Timeframes       []domain.Timeframe

	Metrics *observability.Metrics // optional
	Logger  *log.Logger
}

// Service is the application facade.
type Service struct {
	collector *ingestion.Collector
	resampler *resample.Engine
	alerts    *alerting.Engine

	ticks   storage.TickStore
	bars    storage.BarStore
	metrics *observability.Metrics
	logger  *log.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Service and wires the subsystem hooks: every ingested
// tick is offered to the alert engine, fresh symbols get one immediate
// resample pass, and the optional metrics observe all of it.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Service{
		ticks:   opts.TickStore,
		bars:    opts.BarStore,
		metrics: opts.Metrics,
		logger:  logger,
	}

	s.alerts = alerting.NewEngine(alerting.EngineOptions{
		RuleStore:    opts.RuleStore,
		TriggerStore: opts.TriggerStore,
		OnTrigger: func(trig *domain.AlertTrigger) {
			if s.metrics != nil {
				s.metrics.AlertsFired.WithLabelValues(trig.Symbol).Inc()
			}
		},
		Logger: logger,
	})

	s.resampler = resample.NewEngine(resample.EngineOptions{
		TickStore:  opts.TickStore,
		BarStore:   opts.BarStore,
		Timeframes: opts.Timeframes,
		Interval:   opts.ResampleInterval,
		OnBars: func(symbol string, count int) {
			if s.metrics != nil {
				s.metrics.BarsUpserted.WithLabelValues(symbol).Add(float64(count))
				s.metrics.LastSuccessfulResample.SetToCurrentTime()
			}
		},
		Logger: logger,
	})

	s.collector = ingestion.NewCollector(ingestion.CollectorOptions{
		Source:         opts.Source,
		TickStore:      opts.TickStore,
		FlushInterval:  opts.FlushInterval,
		BufferCapacity: opts.BufferCapacity,
		OnTick: func(tick domain.Tick) {
			if s.metrics != nil {
				s.metrics.TicksIngested.WithLabelValues(tick.Symbol).Inc()
			}
			s.alerts.Evaluate(context.Background(), tick)
		},
		OnQuickResample: func(symbol string) {
			// Off the hot path: a fresh symbol should show bars without
			// waiting out the periodic cadence.
			go s.resampler.ResampleSymbol(context.Background(), symbol)
		},
		Logger: logger,
	})

	return s
}

// Start begins collection for the given symbols and starts the flush and
// resample loops. Calling Start again adds symbols; already-active
// symbols are unaffected.
func (s *Service) Start(ctx context.Context, symbols []string) error {
	if err := s.collector.Start(ctx, symbols); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.resampler.Start(ctx)
		s.running = true
		s.logger.Printf("[service] started with %d symbols", len(symbols))
	}
	return nil
}

// Stop drains buffers, halts the timers and runs one final resample pass
// over the flushed ticks. No-op if the service never started.
func (s *Service) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	ctx := context.Background()
	s.collector.UnsubscribeAll(ctx)
	s.resampler.Stop()

	if wasRunning {
		s.resampler.RunOnce(ctx)
		s.logger.Printf("[service] stopped")
	}
}

// Status describes the service and its per-symbol streams.
type Status struct {
	Running bool
	Uptime  time.Duration
	Streams map[string]domain.StreamState
}

// GetStatus returns a snapshot of the service state.
func (s *Service) GetStatus() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	streams := s.collector.Status()
	if s.metrics != nil {
		for sym, st := range streams {
			s.metrics.BufferSize.WithLabelValues(sym).Set(float64(st.Buffered))
		}
	}

	return Status{
		Running: running,
		Uptime:  s.collector.Uptime(),
		Streams: streams,
	}
}

// SetStreamStatus is the stream.StatusFunc for the WebSocket client.
func (s *Service) SetStreamStatus(symbol string, status domain.StreamStatus) {
	s.collector.SetStreamStatus(symbol, status)
	if s.metrics != nil && status == domain.StreamConnected {
		s.metrics.StreamReconnects.WithLabelValues(symbol).Inc()
	}
}

// ListSymbols lists every symbol with stored ticks.
func (s *Service) ListSymbols(ctx context.Context) ([]string, error) {
	return s.ticks.Symbols(ctx)
}

// QueryTicks returns up to limit most recent ticks, chronological order.
func (s *Service) QueryTicks(ctx context.Context, symbol string, limit int) ([]*domain.Tick, error) {
	return s.ticks.RecentBySymbol(ctx, symbol, limit)
}

// QueryBars returns up to limit most recent bars for a timeframe,
// chronological order.
func (s *Service) QueryBars(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Bar, error) {
	tf, err := domain.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return s.bars.Recent(ctx, symbol, tf, limit)
}

// RollingStats computes tick statistics over the most recent window.
func (s *Service) RollingStats(ctx context.Context, symbol string, window int) (*analytics.Stats, error) {
	ticks, err := s.ticks.RecentBySymbol(ctx, symbol, window)
	if err != nil {
		return nil, err
	}
	return analytics.ComputeStats(symbol, ticks)
}

// Spread estimates the hedge-ratio spread between two symbols over the
// most recent window of each.
func (s *Service) Spread(ctx context.Context, symbolA, symbolB string, window int, method string) (*analytics.SpreadResult, error) {
	m, err := analytics.ParseSpreadMethod(method)
	if err != nil {
		return nil, err
	}
	a, b, err := s.fetchPair(ctx, symbolA, symbolB, window)
	if err != nil {
		return nil, err
	}
	return analytics.ComputeSpread(symbolA, symbolB, a, b, m)
}

// Correlation computes the log-return correlation of two symbols.
func (s *Service) Correlation(ctx context.Context, symbolA, symbolB string, window int) (*analytics.CorrelationResult, error) {
	a, b, err := s.fetchPair(ctx, symbolA, symbolB, window)
	if err != nil {
		return nil, err
	}
	return analytics.ComputeCorrelation(symbolA, symbolB, a, b)
}

// Backtest runs a mean-reversion backtest over the pair's spread.
func (s *Service) Backtest(ctx context.Context, symbolA, symbolB string, entryZ, exitZ float64, window int) (*analytics.BacktestResult, error) {
	spread, err := s.Spread(ctx, symbolA, symbolB, window, string(analytics.SpreadOLS))
	if err != nil {
		return nil, err
	}
	return analytics.BacktestMeanReversion(spread, entryZ, exitZ)
}

// TimeseriesStats derives per-bar return and volatility statistics.
func (s *Service) TimeseriesStats(ctx context.Context, symbol, timeframe string, limit int) ([]*analytics.BarStats, error) {
	bars, err := s.QueryBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	return analytics.ComputeTimeseriesStats(bars), nil
}

// CreateAlertRule validates and stores a new alert rule.
func (s *Service) CreateAlertRule(ctx context.Context, symbol, field, operator string, threshold float64) (*domain.AlertRule, error) {
	rule, err := s.alerts.CreateRule(ctx, symbol, domain.AlertField(field), domain.AlertOperator(operator), threshold)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ActiveRules.Inc()
	}
	return rule, nil
}

// ListAlertRules lists all alert rules.
func (s *Service) ListAlertRules(ctx context.Context) ([]*domain.AlertRule, error) {
	return s.alerts.ListRules(ctx)
}

// ListTriggeredAlerts returns up to limit most recent triggers.
func (s *Service) ListTriggeredAlerts(ctx context.Context, limit int) ([]*domain.AlertTrigger, error) {
	return s.alerts.RecentTriggers(ctx, limit)
}

// DeleteAlertRule removes a rule; idempotent.
func (s *Service) DeleteAlertRule(ctx context.Context, id string) error {
	if err := s.alerts.DeleteRule(ctx, id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ActiveRules.Dec()
	}
	return nil
}

// ResampleNow forces one resample pass over every symbol.
func (s *Service) ResampleNow(ctx context.Context) {
	s.resampler.RunOnce(ctx)
}

func (s *Service) fetchPair(ctx context.Context, symbolA, symbolB string, window int) (a, b []*domain.Tick, err error) {
	a, err = s.ticks.RecentBySymbol(ctx, symbolA, window)
	if err != nil {
		return nil, nil, err
	}
	b, err = s.ticks.RecentBySymbol(ctx, symbolB, window)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
