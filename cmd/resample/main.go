// Package main runs one resample pass over stored ticks: every symbol,
// every timeframe, then exits. Useful for rebuilding bars after an
// outage or a schema change.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/resample"
	"market-tick-lab/internal/storage"
	chstore "market-tick-lab/internal/storage/clickhouse"
	"market-tick-lab/internal/storage/migrations"
	pgstore "market-tick-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional bar backend)")
	symbol := flag.String("symbol", "", "Resample only this symbol (default: all)")
	timeframe := flag.String("timeframe", "", "Resample only this timeframe: 1s, 1m or 5m (default: all)")
	flag.Parse()

	logger := log.New(os.Stdout, "[resample] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	var timeframes []domain.Timeframe
	if *timeframe != "" {
		tf, err := domain.ParseTimeframe(*timeframe)
		if err != nil {
			logger.Fatalf("Invalid --timeframe %q: %v", *timeframe, err)
		}
		timeframes = []domain.Timeframe{tf}
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	tickStore := pgstore.NewTickStore(pool)

	var barStore storage.BarStore = pgstore.NewBarStore(pool)
	if *clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse: %v", err)
		}
		defer chConn.Close()
		barStore = chstore.NewBarStore(chConn)
	}

	engine := resample.NewEngine(resample.EngineOptions{
		TickStore:  tickStore,
		BarStore:   barStore,
		Timeframes: timeframes,
		OnBars: func(sym string, count int) {
			logger.Printf("%s: %d bars", sym, count)
		},
		Logger: logger,
	})

	if *symbol != "" {
		engine.ResampleSymbol(ctx, *symbol)
	} else {
		engine.RunOnce(ctx)
	}

	fmt.Println("Resample pass complete")
}
