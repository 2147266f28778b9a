package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"DWML/internal/di"
	"DWML/internal/domain/models"
	"DWML/pkg/config"
	xhttp "DWML/pkg/http"
)

func main() {
	configPath := flag.String("config", "", "optional config file path")
	symbol := flag.String("symbol", "", "coin ticker, e.g. BTC")
	investment := flag.String("investment", "", "amount invested at the opening price")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	if *symbol == "" || *investment == "" {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*configPath, *symbol, *investment, *timeout))
}

func run(configPath, symbol, investment string, timeout time.Duration) int {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	// one-shot runs never wait on background workers
	cfg.Analysis.QueryLogBackend = "sql"
	cfg.Logger.Output = "stderr"

	amount, err := xhttp.ParseDecimal("investment", investment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	engine, cleanup, err := di.InitializeEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := engine.Analyze(ctx, symbol, amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s (%s)\n", models.PublicMessage(err), models.Kind(err))
		if models.Kind(err) == "invalid_investment" {
			return 2
		}
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}
