package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chrissnell/floodfreq/internal/dataset"
	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
	"github.com/chrissnell/floodfreq/internal/log"
	"github.com/chrissnell/floodfreq/internal/period"
	"github.com/chrissnell/floodfreq/internal/pipeline"
	"github.com/chrissnell/floodfreq/pkg/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set by the linker at build time.
var version = "dev"

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:           "ffa",
	Short:         "Run flood frequency analysis against a statistics backend.",
	Long:          `ffa splits an annual maximum series into periods and runs trend detection and distribution fitting on each.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if viper.GetBool("no-color") {
			color.NoColor = true
		}
		return log.Init(viper.GetBool("debug"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "Optional floodfreq YAML config supplying gateway and analysis options")
	rootCmd.PersistentFlags().String("gateway-url", config.DefaultGatewayURL, "Base URL of the statistics backend")
	rootCmd.PersistentFlags().Duration("gateway-timeout", config.DefaultGatewayTimeout, "Timeout for each backend call")
	rootCmd.PersistentFlags().Int("workers", config.DefaultWorkers, "Number of periods analysed concurrently")
	rootCmd.PersistentFlags().String("splits", "", "Comma-separated split years, e.g. 1950,1980")
	rootCmd.PersistentFlags().Float64("alpha", 0, "Significance level override (0 keeps the configured value)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured output")
	rootCmd.PersistentFlags().Bool("debug", false, "Turn on debugging output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(segmentCmd, trendCmd, estimateCmd, versionCmd)
}

// initConfig wires FFA_* environment variables into viper.
func initConfig() {
	viper.SetEnvPrefix("FFA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadOptions resolves analysis options from the config file, then flags
func loadOptions() (*config.ConfigData, error) {
	cfg := config.NewConfigData()
	if path := viper.GetString("config"); path != "" {
		var err error
		cfg, err = config.NewYAMLProvider(path).LoadConfig()
		if err != nil {
			return nil, err
		}
	}

	// IsSet ignores flag defaults, so only explicit flags and FFA_* variables
	// override the config file.
	if viper.IsSet("gateway-url") {
		cfg.Gateway.URL = viper.GetString("gateway-url")
	}
	if viper.IsSet("gateway-timeout") {
		cfg.Gateway.Timeout = viper.GetDuration("gateway-timeout")
	}
	if viper.IsSet("workers") {
		cfg.Analysis.Workers = viper.GetInt("workers")
	}
	if alpha := viper.GetFloat64("alpha"); alpha != 0 {
		cfg.Analysis.Options.SignificanceLevel = alpha
	}
	if err := cfg.Analysis.Options.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newService(cfg *config.ConfigData) *pipeline.Service {
	client := gateway.NewClient(cfg.Gateway.URL, log.Named("gateway"))
	return pipeline.NewService(
		gateway.WithTimeout(client, cfg.Gateway.Timeout),
		gateway.RendererWithTimeout(client, cfg.Gateway.Timeout),
		cfg.Analysis.Workers,
		log.Named("pipeline"),
	)
}

// readInput loads the series at path ("-" reads stdin) and its split years
func readInput(path string) (ffa.Series, []int, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return ffa.Series{}, nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	series, err := dataset.ReadCSV(r)
	if err != nil {
		return ffa.Series{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	splits, err := period.ParseSplits(viper.GetString("splits"), series.Years)
	if err != nil {
		return ffa.Series{}, nil, err
	}
	return series, splits, nil
}
