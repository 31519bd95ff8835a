package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/config"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/logging"
	"github.com/vsinha/stocktransfer/pkg/infrastructure/metrics"
	"github.com/vsinha/stocktransfer/pkg/interfaces/cli/commands"
	"github.com/vsinha/stocktransfer/pkg/interfaces/cli/output"
	"go.uber.org/zap"
)

func main() {
	// Command line flags
	var (
		scenarioDir = flag.String(
			"scenario",
			"",
			"Path to scenario directory containing CSV files",
		)
		sourcesFile   = flag.String("sources", "", "Path to source transfer lines CSV file")
		bracketsFile  = flag.String("brackets", "", "Path to tax brackets CSV file")
		actionsFile   = flag.String("actions", "", "Path to staging actions CSV file")
		transferOutID = flag.String("transfer", "", "Transfer-out id (default: first source line)")
		location      = flag.String("location", "", "Receiving location (default: first source line)")
		mode          = flag.String("mode", "", "Entry mode: combine, separate")
		dbPath        = flag.String("db", "", "SQLite database to commit into")
		commit        = flag.Bool("commit", false, "Commit the assembled batch")
		configFile    = flag.String("config", "", "YAML configuration file")
		outputDir     = flag.String("output", "", "Output directory for results (optional)")
		format        = flag.String("format", "", "Output format: text, json, csv")
		showMetrics   = flag.Bool("metrics", false, "Print session metrics after the run")
		verbose       = flag.Bool("verbose", false, "Enable verbose output")
		help          = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags win over file and environment values
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *mode != "" {
		cfg.Staging.Mode = *mode
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *showMetrics {
		cfg.Metrics.Enabled = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	entryMode, _ := cfg.EntryMode()

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	// Create and execute command
	cmd := commands.NewTransferCommand(commands.Config{
		ScenarioDir:   *scenarioDir,
		SourcesFile:   *sourcesFile,
		BracketsFile:  *bracketsFile,
		ActionsFile:   *actionsFile,
		TransferOutID: *transferOutID,
		Location:      *location,
		Mode:          entryMode,
		DBPath:        cfg.Database.Path,
		Commit:        *commit,
		OutputDir:     *outputDir,
		Format:        cfg.Output.Format,
		Verbose:       *verbose,
		Help:          *help,
	}, logger, recorder)

	runErr := cmd.Execute(context.Background())

	if cfg.Metrics.Enabled && !*help {
		families, err := registry.Gather()
		if err != nil {
			logger.Warn("failed to gather metrics", zap.Error(err))
		} else {
			output.WriteMetrics(os.Stderr, families)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
