package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"asset-downloader/pkg/config"
	"asset-downloader/pkg/engine"
	"asset-downloader/pkg/models"
	"asset-downloader/pkg/report"
)

const version = "1.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runDownloads(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("asset-downloader %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`asset-downloader - Bulk part asset downloader

Usage:
  asset-downloader <command> [options]

Commands:
  run       Download assets for every row in the input file
  validate  Validate configuration file
  version   Show version info

Run 'asset-downloader <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.DownloadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Overlay the document on the defaults so an explicit zero in the
	// file (retry_attempts: 0) is honored rather than re-defaulted
	cfg := config.Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// loadRows reads a headered CSV file into the engine's named-column
// row form
func loadRows(path string) ([]models.RowData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rows file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}

	var rows []models.RowData
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		row := make(models.RowData, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// runDownloads handles the run subcommand
func runDownloads(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	rowsFile := fs.String("rows", "", "Path to CSV file with a header row")
	reportFile := fs.String("report", "", "Path to write the download log CSV (optional)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: asset-downloader run [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  asset-downloader run -config config.yaml -rows parts.csv\n")
		fmt.Fprintf(os.Stderr, "  asset-downloader run -rows parts.csv -report download_log.csv\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *rowsFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -rows is required")
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(executeRun(*configFile, *rowsFile, *reportFile, *logLevel))
}

// executeRun contains the main download logic. Returns the exit code.
func executeRun(configFile, rowsFile, reportFile, logLevelStr string) int {
	log := setupLogger(logLevelStr)

	log.Infof("Loading configuration from %s", configFile)
	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	rows, err := loadRows(rowsFile)
	if err != nil {
		log.Errorf("Rows error: %v", err)
		return 1
	}
	log.Infof("Loaded %d rows from %s", len(rows), rowsFile)

	eng := engine.New(log)
	events := eng.Events()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signals request cooperative cancellation; a second signal forces
	// exit
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, cancelling downloads...", sig)
		eng.CancelDownloads()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Shutdown period exceeded, forcing exit")
			os.Exit(1)
		}
	}()

	if err := eng.StartDownloads(ctx, cfg, rows); err != nil {
		log.Errorf("Cannot start downloads: %v", err)
		return 1
	}

	exitCode := consumeEvents(events, log)

	if reportFile != "" {
		if err := writeReport(reportFile, eng.Records()); err != nil {
			log.Errorf("Failed to write report: %v", err)
			return 1
		}
		log.Infof("Download log written to %s", reportFile)
	}

	return exitCode
}

// consumeEvents drains the event channel until the terminal event,
// echoing progress along the way. Returns the exit code.
func consumeEvents(events <-chan engine.Event, log *logrus.Logger) int {
	lastPct := -1.0
	for ev := range events {
		switch ev.Kind {
		case engine.EventProgress:
			// Progress snapshots arrive per task transition; only log
			// whole-percent movement to keep output readable
			if ev.Progress.Percentage-lastPct >= 1.0 {
				lastPct = ev.Progress.Percentage
				log.Infof("Progress: %.0f%% (%d/%d, %d failed) %s",
					ev.Progress.Percentage,
					ev.Progress.Completed()+ev.Progress.Cancelled,
					ev.Progress.Total,
					ev.Progress.Failed,
					ev.Progress.CurrentFile)
			}
		case engine.EventComplete:
			log.Infof("Complete: %d succeeded, %d failed, %d background-processed in %v",
				ev.Summary.Successful, ev.Summary.Failed, ev.Summary.BackgroundProcessed,
				ev.Summary.Duration.Round(time.Millisecond))
			if ev.Summary.Failed > 0 {
				return 1
			}
			return 0
		case engine.EventCancelled:
			log.Warnf("Cancelled: %d succeeded, %d cancelled, %d failed",
				ev.Summary.Successful, ev.Summary.Cancelled, ev.Summary.Failed)
			return 0
		case engine.EventError:
			log.Errorf("Run failed: %v", ev.Err)
			return 1
		}
	}
	return 1
}

// writeReport renders collected task records as the download log CSV
func writeReport(path string, records []models.TaskReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(report.Header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(report.Row(r)); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: asset-downloader validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Configuration valid.")
	return 0
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}
