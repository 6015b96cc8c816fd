package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pcmops/jobmetrics/internal/config"
	"github.com/pcmops/jobmetrics/internal/es"
	"github.com/pcmops/jobmetrics/internal/estimate"
	"github.com/pcmops/jobmetrics/internal/extract"
	"github.com/pcmops/jobmetrics/internal/report"
	"github.com/pcmops/jobmetrics/internal/repository"
	"github.com/pcmops/jobmetrics/internal/timerange"
)

var (
	daysBack  int
	timeStart string
	timeEnd   string
	verbose   bool
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "jobmetrics",
	Short: "Export job-runtime telemetry aggregates from Elasticsearch to tabular reports",
	Long: `jobmetrics queries a workflow system's metrics cluster for job-runtime
telemetry, aggregates it server-side per job type and instance type, and
writes the aggregates to an Excel workbook or CSV files.

The query window comes from --days_back, or from an explicit
--time_start/--time_end pair in YYYYMMDDTHHMMSSZ form. Credentials are read
from config or the JOBMETRICS_ES_USERNAME/JOBMETRICS_ES_PASSWORD environment
variables, and prompted for otherwise.

Examples:
  jobmetrics --verbose --es_url="https://venue/mozart_es/logstash-*/_search" --days_back=21
  jobmetrics --debug --es_url="https://venue/metrics_es/logstash-*/_search" \
      --time_start=20240101T000000Z --time_end=20240313T000000Z`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("es_url", "u", "", "Elasticsearch search endpoint URL (required)")
	flags.IntVarP(&daysBack, "days_back", "b", 0, "Number of days to look back from now")
	flags.StringVarP(&timeStart, "time_start", "s", "", "Start of the query window (YYYYMMDDTHHMMSSZ)")
	flags.StringVarP(&timeEnd, "time_end", "e", "", "End of the query window (YYYYMMDDTHHMMSSZ)")
	flags.BoolVar(&verbose, "verbose", false, "Log progress at info level")
	flags.BoolVar(&debug, "debug", false, "Log queries and responses at debug level")
	flags.String("format", report.FormatXLSX, "Report format: xlsx or csv")
	flags.String("output_dir", ".", "Directory the report is written to")
	flags.String("estimate_ref", "", "Reference EC2 workbook; adds the product_estimates sheet")
	flags.String("compute_type", estimate.DefaultComputeType, "Billing column used to price product estimates")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()

	switch {
	case debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.ES.URL == "" {
		return errors.New("missing required flag es_url")
	}

	window, err := timerange.Resolve(daysBack, timeStart, timeEnd, time.Now())
	if err != nil {
		return err
	}
	logger.Info().
		Time("start", window.Start).
		Time("end", window.End).
		Float64("duration_days", window.DurationDays()).
		Msg("resolved query window")

	endpoint, err := es.ParseEndpoint(cfg.ES.URL)
	if err != nil {
		return err
	}
	logger.Info().Str("address", endpoint.Address).Str("index", endpoint.Index).Msg("metrics cluster")

	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}

	client, err := es.NewClient(es.Config{
		Endpoint:    endpoint,
		Credentials: creds,
		Insecure:    cfg.ES.Insecure,
		Timeout:     cfg.ES.Timeout,
		DebugBodies: debug,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := repository.NewMetricsRepository(client)
	extractor := extract.New(repo, logger, cfg.Report.Rounding)

	rows, err := extractor.Run(ctx, window)
	if err != nil {
		return errors.Wrap(err, "collect job metrics")
	}
	if len(rows) == 0 {
		logger.Warn().Msg("no successful job records in the query window")
	}
	counts := extract.CountsByJobName(rows, cfg.Report.Rounding)

	tables := []report.Table{report.MetricsTable(rows), report.CountsTable(counts)}
	if cfg.Report.EstimateRef != "" {
		ref, err := estimate.LoadRefInstances(cfg.Report.EstimateRef, cfg.Report.ComputeType)
		if err != nil {
			return errors.Wrap(err, "load estimate reference workbook")
		}
		estimates := estimate.Build(rows, ref, cfg.Report.ComputeType, cfg.Report.Rounding)
		tables = append(tables, estimate.EstimatesTable(estimates))
	}

	base := filepath.Join(cfg.Report.OutputDir, report.Filename(endpoint.Host, window))
	written, err := export(tables, base, cfg.Report.Format)
	if err != nil {
		return errors.Wrap(err, "export report")
	}

	for _, path := range written {
		logger.Info().Str("path", path).Msg("report written")
		fmt.Println(path)
	}
	return nil
}

func export(tables []report.Table, base, format string) ([]string, error) {
	if format == report.FormatCSV {
		return report.WriteCSV(tables, base)
	}
	path := base + ".xlsx"
	if err := report.WriteWorkbook(tables, path); err != nil {
		return nil, err
	}
	return []string{path}, nil
}
