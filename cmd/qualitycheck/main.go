// Command qualitycheck loads the tracking datasets and prints what the
// loaders found wrong with them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"covidqc/internal/app"
	"covidqc/internal/config"
	"covidqc/internal/datasource"
	"covidqc/internal/diagnostics"
	apperrors "covidqc/internal/errors"
	"covidqc/internal/infrastructure"
)

type options struct {
	working     bool
	current     bool
	history     bool
	counties    bool
	debug       bool
	preview     int
	metricsFile string
	exportDir   string
	workbook    string
	bom         bool
	states      []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("qualitycheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.working, "w", false, "check the working sheet (only)")
	fs.BoolVar(&opts.current, "d", false, "check the current values (only)")
	fs.BoolVar(&opts.history, "x", false, "check the history (only)")
	fs.BoolVar(&opts.counties, "counties", false, "also load the county feeds and their rollup")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.IntVar(&opts.preview, "rows", 0, "print the first n rows of each loaded dataset")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	fs.StringVar(&opts.exportDir, "export", "", "write each loaded dataset as CSV into this directory")
	fs.StringVar(&opts.workbook, "xlsx", "", "write the loaded datasets into this xlsx workbook")
	fs.BoolVar(&opts.bom, "bom", false, "prefix exported CSV files with a UTF-8 byte order mark")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: qualitycheck [flags] [state...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.states = fs.Args()
	return opts, nil
}

// selected returns the datasets to load in order. With no source flag the
// three core sources are checked.
func (o options) selected() []datasource.Name {
	if !o.working && !o.current && !o.history {
		o.working, o.current, o.history = true, true, true
	}
	var names []datasource.Name
	if o.working {
		names = append(names, datasource.Working)
	}
	if o.current {
		names = append(names, datasource.Current)
	}
	if o.history {
		names = append(names, datasource.History)
	}
	if o.counties {
		names = append(names, datasource.Counties)
	}
	return names
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}
	if opts.metricsFile != "" {
		cfg.Telemetry.MetricExporter = "prometheus"
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(infrastructure.EnsureTraceID(ctx), cfg, opts, logger, os.Stdout)
	stop()
	if err := infrastructure.CloseLogFile(); err != nil {
		fmt.Fprintln(os.Stderr, "closing log file:", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger, out io.Writer) int {
	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry", "error", err)
		return 1
	}
	defer providers.Shutdown(context.Background())

	var metrics *infrastructure.SourceMetrics
	if providers.Meter != nil {
		if metrics, err = infrastructure.CreateSourceMetrics(providers.Meter); err != nil {
			logger.Error("Failed to create source metrics", "error", err)
			return 1
		}
	}

	provider, err := app.NewProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize loaders", "error", err)
		return 1
	}

	ds := datasource.New(provider,
		datasource.WithLogger(logger),
		datasource.WithMetrics(metrics),
	)
	code := check(ctx, ds, opts, logger, out)
	infrastructure.RecordRun(ctx, metrics, ds.Log().HasError())

	if opts.exportDir != "" || opts.workbook != "" {
		if err := export(ctx, ds, opts, logger); err != nil {
			infrastructure.WithError(logger, err).Error("Failed to export datasets")
			return 1
		}
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, prometheus.DefaultGatherer); err != nil {
			logger.Error("Failed to write metrics file", "path", opts.metricsFile, "error", err)
			return 1
		}
		logger.Info("Metrics written", "path", opts.metricsFile)
	}
	return code
}

// check loads the selected datasets, prints a section per dataset and the
// diagnostics log. It returns the process exit code: 0 clean, 1 when the log
// holds an error or a sheet layout changed.
func check(ctx context.Context, ds *datasource.DataSource, opts options, logger *slog.Logger, out io.Writer) int {
	if len(opts.states) != 0 {
		logger.Error("states filter not implemented", "states", opts.states)
	}

	code := 0
	for _, name := range opts.selected() {
		fmt.Fprintf(out, "--| QUALITY CONTROL --- %s |------\n", sectionTitle(name))

		f, err := ds.Get(ctx, name)
		if err != nil {
			fmt.Fprintf(out, "%s\n", err)
			if apperrors.IsSchemaDrift(err) {
				code = 1
			}
			continue
		}
		if f != nil && opts.preview > 0 {
			renderPreview(out, f, opts.preview)
		}
	}

	fmt.Fprintln(out)
	renderStatuses(out, ds.Statuses())

	log := ds.Log()
	if log.Len() > 0 {
		fmt.Fprintln(out)
		if err := log.Print(out); err != nil {
			logger.Warn("Failed to print diagnostics", "error", err)
		}
	}
	if log.HasError() {
		code = 1
	}
	logger.Info("Quality check finished",
		"errors", log.Count(diagnostics.SeverityError),
		"warnings", log.Count(diagnostics.SeverityWarning))
	return code
}

func sectionTitle(name datasource.Name) string {
	switch name {
	case datasource.Working:
		return "GOOGLE WORKING SHEET"
	case datasource.Current:
		return "CURRENT"
	case datasource.History:
		return "HISTORY"
	case datasource.Counties:
		return "COUNTIES"
	default:
		return string(name)
	}
}
