package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/vaas-cert-export/internal/config"
)

// version is set at build time with -ldflags "-X main.version=<tag>".
var version = "dev"

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the raw flag values; only flags the user set override the
// file and environment.
type options struct {
	configPath    string
	url           string
	region        string
	status        string
	sortField     string
	sortDirection string
	pageSize      int
	timeout       time.Duration
	outputDir     string
	logLevel      string
	logPretty     bool
	metricsFile   string
}

func newRootCmd(lookup config.LookupFunc) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "vaas-cert-export",
		Short: "Export certificates from a Venafi as a Service inventory to CSV",
		Long: "Pages through the certificate search API of Venafi as a Service and writes\n" +
			"every matching certificate to output_<YYYYMMDD_HHMMSS>.csv.\n\n" +
			"The API key is read from VAAS_API_KEY.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd.Flags(), lookup)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	bindFlags(cmd.Flags(), &opts)

	cmd.AddCommand(newVersionCmd())
	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version

	return cmd
}

func bindFlags(flags *pflag.FlagSet, opts *options) {
	defaults := config.Default()

	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.url, "url", "", "Service base URL (overrides --region)")
	flags.StringVar(&opts.region, "region", defaults.Service.Region, "Service region: us or eu")
	flags.StringVar(&opts.status, "status", defaults.Search.StatusFilter, "Certificate status to match")
	flags.StringVar(&opts.sortField, "sort-field", defaults.Search.SortField, "Field to order results by")
	flags.StringVar(&opts.sortDirection, "sort-direction", defaults.Search.SortDirection, "Sort direction: ASC or DESC")
	flags.IntVar(&opts.pageSize, "page-size", defaults.Search.PageSize, "Records per page")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Service.Timeout, "Per-request timeout")
	flags.StringVar(&opts.outputDir, "output-dir", defaults.Output.Dir, "Directory for the CSV file")
	flags.StringVar(&opts.logLevel, "log-level", defaults.Logging.Level, "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable log output")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
}

// loadConfig layers defaults, the YAML file, the environment and the flags
// the user set, in that order, and validates the result.
func loadConfig(opts options, flags *pflag.FlagSet, lookup config.LookupFunc) (*config.Config, error) {
	return config.LoadWithEnv(opts.configPath, lookup, func(cfg *config.Config) {
		applyFlags(cfg, opts, flags)
	})
}

func applyFlags(cfg *config.Config, opts options, flags *pflag.FlagSet) {
	if flags.Changed("url") {
		cfg.Service.URL = opts.url
	}
	if flags.Changed("region") {
		cfg.Service.Region = opts.region
	}
	if flags.Changed("status") {
		cfg.Search.StatusFilter = opts.status
	}
	if flags.Changed("sort-field") {
		cfg.Search.SortField = opts.sortField
	}
	if flags.Changed("sort-direction") {
		cfg.Search.SortDirection = opts.sortDirection
	}
	if flags.Changed("page-size") {
		cfg.Search.PageSize = opts.pageSize
	}
	if flags.Changed("timeout") {
		cfg.Service.Timeout = opts.timeout
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = opts.outputDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Logging.Pretty = opts.logPretty
	}
	if flags.Changed("metrics-file") {
		cfg.Output.MetricsFile = opts.metricsFile
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "vaas-cert-export %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
