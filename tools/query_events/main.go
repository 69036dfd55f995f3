package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/patrickwarner/slotengine/internal/analytics"
	"github.com/patrickwarner/slotengine/internal/config"
	"github.com/patrickwarner/slotengine/internal/observability"
	"go.uber.org/zap"
)

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	var timeout time.Duration
	flag.StringVar(&id, "content", "", "content unit ID")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "query timeout")
	flag.Parse()

	if id == "" {
		fmt.Fprintln(os.Stderr, "content required")
		os.Exit(1)
	}
	if dsn == "" {
		cfg := config.Load()
		dsn = cfg.ClickHouseDSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "no ClickHouse DSN: pass -dsn or set CLICKHOUSE_DSN")
		os.Exit(1)
	}

	a, err := analytics.InitClickHouse(dsn, 2, 1, 5*time.Minute, 1*time.Minute)
	if err != nil {
		logger.Error("connect clickhouse", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	events, err := a.GetEventsByContentID(ctx, id)
	if err != nil {
		logger.Error("query events", zap.String("content_id", id), zap.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		fmt.Fprintf(os.Stderr, "encode events: %v\n", err)
		os.Exit(1)
	}
}
