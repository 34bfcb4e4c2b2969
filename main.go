package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/cmd"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/config"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/database"
)

func main() {
	setupLogging()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Migration subcommands manage the schema without touching the services
	if os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	var err error
	switch os.Args[1] {
	case "run":
		flags := cmd.PipelineFlags{}
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		fs.StringVar(&flags.Source, "source", "", "CSV file to load (defaults to RAW_DATA_FILE)")
		fs.IntVar(&flags.SampleSize, "sample-size", -1, "load only the first N rows, 0 for all")
		fs.IntVar(&flags.BatchSize, "batch-size", 0, "rows per upsert batch")
		if err := fs.Parse(os.Args[2:]); err != nil {
			os.Exit(2)
		}
		err = cmd.RunPipeline(ctx, flags)
	case "serve":
		err = cmd.Serve(ctx)
	case "snapshot":
		err = cmd.Snapshot(ctx)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("Application error: ", err)
	}
}

func setupLogging() {
	cfg := config.Get()
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: loanetl <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  run       execute one pipeline pass [--source FILE] [--sample-size N] [--batch-size N]")
	fmt.Fprintln(os.Stderr, "  serve     start the HTTP API")
	fmt.Fprintln(os.Stderr, "  snapshot  write today's KPI snapshot")
	fmt.Fprintln(os.Stderr, "  migrate   manage the schema [up|down|status]")
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: loanetl migrate [up|down|status] [args...]")
	}

	switch os.Args[2] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", os.Args[2])
	}
}
