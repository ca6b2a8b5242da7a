// Package main dumps stored bars for one symbol as CSV to stdout, or
// imports a CSV produced by the same layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"market-tick-lab/internal/service"
	"market-tick-lab/internal/storage"
	chstore "market-tick-lab/internal/storage/clickhouse"
	"market-tick-lab/internal/storage/memory"
	"market-tick-lab/internal/storage/migrations"
	pgstore "market-tick-lab/internal/storage/postgres"
	"market-tick-lab/internal/stream/stub"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional bar backend)")
	symbol := flag.String("symbol", "", "Symbol to export")
	timeframe := flag.String("timeframe", "1m", "Timeframe: 1s, 1m or 5m")
	limit := flag.Int("limit", 0, "Maximum bars to export (0 = all)")
	importFile := flag.String("import", "", "Import bars from this CSV file instead of exporting")
	flag.Parse()

	logger := log.New(os.Stderr, "[export] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *importFile == "" && *symbol == "" {
		logger.Fatal("--symbol is required for export")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	var barStore storage.BarStore = pgstore.NewBarStore(pool)
	if *clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse: %v", err)
		}
		defer chConn.Close()
		barStore = chstore.NewBarStore(chConn)
	}

	// The facade needs a full option set; only the bar store matters here.
	svc := service.New(service.Options{
		Source:       stub.NewStubTickSource(nil),
		TickStore:    pgstore.NewTickStore(pool),
		BarStore:     barStore,
		RuleStore:    memory.NewAlertRuleStore(),
		TriggerStore: memory.NewAlertTriggerStore(),
		Logger:       logger,
	})

	if *importFile != "" {
		f, err := os.Open(*importFile)
		if err != nil {
			logger.Fatalf("Failed to open %s: %v", *importFile, err)
		}
		defer f.Close()

		bars, err := service.ParseBarsCSV(f)
		if err != nil {
			logger.Fatalf("Failed to parse %s: %v", *importFile, err)
		}
		n, err := svc.ImportBars(ctx, bars)
		if err != nil {
			logger.Fatalf("Failed to import bars: %v", err)
		}
		logger.Printf("Imported %d bars from %s", n, *importFile)
		return
	}

	out, err := svc.ExportBarsCSV(ctx, *symbol, *timeframe, *limit)
	if err != nil {
		logger.Fatalf("Failed to export bars: %v", err)
	}
	fmt.Print(out)
}
