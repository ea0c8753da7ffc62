// Package main is the entry point for the chartcore indicator engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mihcharts/chartcore/internal/config"
	"github.com/mihcharts/chartcore/internal/feed"
	"github.com/mihcharts/chartcore/internal/metrics"
	"github.com/mihcharts/chartcore/internal/pipeline"
	"github.com/mihcharts/chartcore/internal/store"
)

// Version information (set by build flags).
var (
	Version   = "0.2.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "import":
		cmdImport(os.Args[2:])
	case "compute":
		cmdCompute(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`chartcore - technical indicator computation engine

Usage:
  chartcore <command> [options]

Commands:
  import     Import OHLC bars from a CSV file into the bar store
  compute    Compute the configured indicators over a stored series
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  chartcore import --config config.yaml --data data/ES_5m.csv --symbol ES
  chartcore compute --config config.yaml --output table
  chartcore validate --config config.yaml

Use "chartcore <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("chartcore version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.Logging.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	var enabled []string
	for _, req := range cfg.Requests() {
		enabled = append(enabled, req.Kind.String())
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Bar store: %s\n", cfg.Data.Path)
	fmt.Printf("  Series: %s %s\n", cfg.Data.Symbol, cfg.Data.Interval)
	fmt.Printf("  Indicators: %s\n", strings.Join(enabled, ", "))
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	dataPath := fs.String("data", "", "Path to CSV data file (required)")
	symbol := fs.String("symbol", "", "Symbol to store the bars under (default: config data.symbol)")
	interval := fs.String("interval", "", "Bar interval (default: config data.interval)")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --data is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg, *verbose)

	if *symbol == "" {
		*symbol = cfg.Data.Symbol
	}
	if *interval == "" {
		*interval = cfg.Data.Interval
	}
	if *symbol == "" {
		fmt.Fprintln(os.Stderr, "Error: --symbol is required when data.symbol is unset")
		os.Exit(1)
	}

	series, err := feed.LoadCSV(*dataPath)
	if err != nil {
		logger.Error("failed to load csv", "path", *dataPath, "err", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Data.Path)
	if err != nil {
		logger.Error("failed to open bar store", "path", cfg.Data.Path, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.SaveBars(ctx, *symbol, *interval, series.Bars()); err != nil {
		logger.Error("failed to save bars", "err", err)
		os.Exit(1)
	}
	metrics.NewRecorder().RecordBarsStored(*symbol, series.Len())

	logger.Info("import complete",
		"symbol", *symbol,
		"interval", *interval,
		"bars", series.Len(),
		"store", cfg.Data.Path,
	)
}

func cmdCompute(args []string) {
	fs := flag.NewFlagSet("compute", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	output := fs.String("output", "table", "Output format: table, json")
	tail := fs.Int("tail", 20, "Number of trailing bars to print in table output (0 = all)")
	serve := fs.Bool("serve", false, "Keep the metrics server running after computing")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *metrics.Server
	if cfg.Metrics.Enabled {
		server = metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
			HealthPath:  "/health",
		}, logger)
		if err := server.Start(); err != nil {
			logger.Error("failed to start metrics server", "err", err)
			os.Exit(1)
		}
	}

	st, err := store.Open(cfg.Data.Path)
	if err != nil {
		logger.Error("failed to open bar store", "path", cfg.Data.Path, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	series, err := st.LoadSeries(ctx, cfg.Data.Symbol, cfg.Data.Interval)
	if err != nil {
		logger.Error("failed to load series",
			"symbol", cfg.Data.Symbol,
			"interval", cfg.Data.Interval,
			"err", err,
		)
		os.Exit(1)
	}

	p := pipeline.New(logger, metrics.NewRecorder())
	p.SetSeries(series)

	result, err := p.Compute(ctx, cfg.Requests())
	if err != nil {
		logger.Error("computation failed", "err", err)
		os.Exit(1)
	}
	for kind, indErr := range result.Errors {
		logger.Warn("indicator failed", "indicator", kind.String(), "err", indErr)
	}

	switch *output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Bars); err != nil {
			logger.Error("failed to encode result", "err", err)
			os.Exit(1)
		}
	case "table":
		printTable(result, *tail)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format: %s\n", *output)
		os.Exit(1)
	}

	if *serve && server != nil {
		logger.Info("serving metrics, press Ctrl-C to exit")
		<-ctx.Done()
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "err", err)
		}
	}
}

func printTable(result *pipeline.Result, tail int) {
	bars := result.Bars
	if tail > 0 && len(bars) > tail {
		bars = bars[len(bars)-tail:]
	}

	fmt.Printf("%-5s %-20s %10s %10s %10s %10s  %-8s %-6s %-5s %-6s\n",
		"IDX", "TIMESTAMP", "OPEN", "HIGH", "LOW", "CLOSE", "FLIP", "SETUP", "CD", "BASIS")

	for _, mb := range bars {
		flip, setup, cd := "", "", ""
		if s := mb.Sequential; s != nil {
			if s.Flip.String() != "none" {
				flip = s.Flip.String()
			}
			if s.SetupCount > 0 {
				setup = fmt.Sprintf("%s %d", s.SetupDirection, s.SetupCount)
				if s.SetupPerfected {
					setup += "*"
				}
			}
			cd = s.Countdown.String()
		}
		basis := ""
		if b := mb.Bands; b != nil && b.Basis.Valid {
			basis = b.Basis.Decimal.StringFixed(2)
		}

		fmt.Printf("%-5d %-20s %10s %10s %10s %10s  %-8s %-6s %-5s %-6s\n",
			mb.Index,
			mb.Timestamp.Format("2006-01-02 15:04"),
			mb.Bar.Open.StringFixed(2),
			mb.Bar.High.StringFixed(2),
			mb.Bar.Low.StringFixed(2),
			mb.Bar.Close.StringFixed(2),
			flip, setup, cd, basis,
		)
	}

	fmt.Printf("\n%d bars, generation %d, computation %s\n",
		len(result.Bars), result.Generation, result.ID)
}
