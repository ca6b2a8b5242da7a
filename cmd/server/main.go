// Package main provides the unified market data server:
// - Ingestion (continuous): per-symbol WebSocket trade streams into buffered storage
// - Resampling (scheduled): OHLC bars at 1s/1m/5m from stored ticks
// - Alerting (per tick): threshold rules evaluated on the live flow
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/observability"
	"market-tick-lab/internal/service"
	"market-tick-lab/internal/storage"
	chstore "market-tick-lab/internal/storage/clickhouse"
	"market-tick-lab/internal/storage/memory"
	"market-tick-lab/internal/storage/migrations"
	pgstore "market-tick-lab/internal/storage/postgres"
	"market-tick-lab/internal/stream"
)

// allStores holds all storage implementations.
type allStores struct {
	tickStore    storage.TickStore
	barStore     storage.BarStore
	ruleStore    storage.AlertRuleStore
	triggerStore storage.AlertTriggerStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	wsEndpoint := flag.String("ws-endpoint", envOr("STREAM_WS_ENDPOINT", "wss://fstream.binance.com/ws"), "Trade stream WebSocket endpoint")
	symbolsFlag := flag.String("symbols", os.Getenv("SYMBOLS"), "Comma-separated symbols to collect (e.g. btcusdt,ethusdt)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional bar backend)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flushInterval := flag.Duration("flush-interval", 1*time.Second, "Tick buffer flush interval")
	resampleInterval := flag.Duration("resample-interval", 10*time.Second, "Bar resample interval")
	bufferCapacity := flag.Int("buffer-capacity", 10000, "Per-symbol tick buffer capacity")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	symbols := splitSymbols(*symbolsFlag)
	if len(symbols) == 0 {
		logger.Fatal("--symbols is required (e.g. --symbols btcusdt,ethusdt)")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	logger.Printf("Collecting symbols: %v", symbols)

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	// The stream client reports connection state back into the service;
	// the service is constructed right after, before any subscription
	// can fire the callback.
	var svc *service.Service
	source := stream.NewClient(stream.ClientOptions{
		Endpoint: *wsEndpoint,
		OnStatus: func(symbol string, status domain.StreamStatus) {
			svc.SetStreamStatus(symbol, status)
		},
		Logger: log.New(os.Stdout, "[stream] ", log.LstdFlags),
	})

	svc = service.New(service.Options{
		Source:           source,
		TickStore:        stores.tickStore,
		BarStore:         stores.barStore,
		RuleStore:        stores.ruleStore,
		TriggerStore:     stores.triggerStore,
		FlushInterval:    *flushInterval,
		ResampleInterval: *resampleInterval,
		BufferCapacity:   *bufferCapacity,
		Metrics:          metrics,
		Logger:           logger,
	})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go startHTTPServer(*metricsAddr, svc, logger)

	if err := svc.Start(ctx, symbols); err != nil {
		logger.Fatalf("Failed to start collection: %v", err)
	}

	<-ctx.Done()
	svc.Stop()
	close(done)

	logger.Println("Shutdown complete")
}

// splitSymbols parses the comma-separated symbol list, lowercased and
// deduplicated, preserving first-seen order.
func splitSymbols(s string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, sym := range strings.Split(s, ",") {
		sym = strings.ToLower(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		result = append(result, sym)
	}
	return result
}

// createStores creates all required stores and applies migrations.
// Ticks, alert rules and triggers live in PostgreSQL; bars go to
// ClickHouse when a DSN is given, otherwise to PostgreSQL as well.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			tickStore:    memory.NewTickStore(),
			barStore:     memory.NewBarStore(),
			ruleStore:    memory.NewAlertRuleStore(),
			triggerStore: memory.NewAlertTriggerStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	stores := &allStores{
		tickStore:    pgstore.NewTickStore(pool),
		barStore:     pgstore.NewBarStore(pool),
		ruleStore:    pgstore.NewAlertRuleStore(pool),
		triggerStore: pgstore.NewAlertTriggerStore(pool),
	}

	if clickhouseDSN == "" {
		return stores, pool.Close, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("prepare clickhouse: %w", err)
	}
	stores.barStore = chstore.NewBarStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func startHTTPServer(addr string, svc *service.Service, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := svc.GetStatus()

		resp := statusResponse{
			Status:  "stopped",
			Uptime:  status.Uptime.String(),
			Streams: make(map[string]streamStatus, len(status.Streams)),
		}
		if status.Running {
			resp.Status = "running"
		}
		for sym, st := range status.Streams {
			resp.Streams[sym] = streamStatus{
				Status:     string(st.Status),
				LastSeen:   st.LastSeen,
				Buffered:   st.Buffered,
				Dropped:    st.Dropped,
				Reconnects: st.Reconnects,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// statusResponse is the JSON response for the /status endpoint.
type statusResponse struct {
	Status  string                  `json:"status"`
	Uptime  string                  `json:"uptime"`
	Streams map[string]streamStatus `json:"streams"`
}

type streamStatus struct {
	Status     string `json:"status"`
	LastSeen   int64  `json:"last_seen_ms"`
	Buffered   int    `json:"buffered"`
	Dropped    uint64 `json:"dropped"`
	Reconnects int    `json:"reconnects"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
