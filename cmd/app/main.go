package main

import (
	"flag"
	"log"
	"os"

	"DWML/internal/di"
	"DWML/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s db=%s cache=%s queue=%s query_log=%s",
		cfg.Environment, cfg.Database.Driver, cfg.Cache.Backend, cfg.Queue.Backend, cfg.Analysis.QueryLogBackend)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run blocks until SIGINT/SIGTERM
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
