package main

import (
	"fmt"
	"strings"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/pipeline"
	"github.com/spf13/cobra"
)

var segmentCmd = &cobra.Command{
	Use:   "segment <csv>",
	Short: "Split a series at the given years and summarise each period.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		series, splits, err := readInput(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadOptions()
		if err != nil {
			return err
		}
		periods, err := newService(cfg).Segments(series, splits)
		if err != nil {
			return err
		}
		return writeSegments(cmd.OutOrStdout(), series, periods)
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend <csv>",
	Short: "Run trend detection on each period.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		series, splits, err := readInput(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadOptions()
		if err != nil {
			return err
		}

		records, err := newService(cfg).TrendDetection(cmd.Context(), pipeline.Request{
			Series:  series,
			Splits:  splits,
			Options: cfg.Analysis.Options,
		})
		if err != nil {
			return err
		}
		return writeTrend(cmd.OutOrStdout(), records)
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <csv>",
	Short: "Fit a distribution to each period.",
	Long: `Fit a distribution to each period.

--distribution and --structure take one value for every period or a
comma-separated value per period. Structures are stationary, location,
scale or location+scale.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		series, splits, err := readInput(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadOptions()
		if err != nil {
			return err
		}

		n := len(splits) + 1
		rawDistributions, _ := cmd.Flags().GetString("distribution")
		distributions, err := perPeriod(rawDistributions, n)
		if err != nil {
			return err
		}
		rawStructure, _ := cmd.Flags().GetString("structure")
		rawStructures, err := perPeriod(rawStructure, n)
		if err != nil {
			return err
		}
		structures := make([]ffa.Structure, n)
		for i, raw := range rawStructures {
			if structures[i], err = parseStructure(raw); err != nil {
				return err
			}
		}

		records, err := newService(cfg).ParameterEstimation(cmd.Context(), pipeline.Request{
			Series:        series,
			Splits:        splits,
			Structures:    structures,
			Distributions: distributions,
			Options:       cfg.Analysis.Options,
		})
		if err != nil {
			return err
		}
		return writeEstimates(cmd.OutOrStdout(), records)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ffa %s\n", version)
	},
}

func init() {
	estimateCmd.Flags().String("distribution", "GEV", "Distribution family, or one per period")
	estimateCmd.Flags().String("structure", "stationary", "Non-stationary structure, or one per period")
}

// perPeriod expands a single value to n periods or checks a list has n items
func perPeriod(raw string, n int) ([]string, error) {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 1 {
		out := make([]string, n)
		for i := range out {
			out[i] = parts[0]
		}
		return out, nil
	}
	if len(parts) != n {
		return nil, fmt.Errorf("%w: got %d values for %d periods", ffa.ErrInputShape, len(parts), n)
	}
	return parts, nil
}
