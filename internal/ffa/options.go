package ffa

import (
	"fmt"
	"slices"
)

// Estimation methods
const (
	MethodLMoments = "L-moments"
	MethodMLE      = "MLE"
	MethodGMLE     = "GMLE"
)

// Uncertainty methods
const (
	MethodBootstrap = "Bootstrap"
	MethodRFPL      = "RFPL"
	MethodRFGPL     = "RFGPL"
)

// Distribution selection methods
const (
	SelectionLDistance  = "L-distance"
	SelectionLKurtosis  = "L-kurtosis"
	SelectionZStatistic = "Z-statistic"
)

// StationarySliceYear is the slice sentinel meaning "evaluate once, no slicing"
const StationarySliceYear = 1900

// Distributions accepted by the fitting procedures
var Distributions = []string{"GUM", "NOR", "LNO", "GEV", "GLO", "PE3", "LP3", "GNO", "WEI"}

// PriorDistribution is the only family whose likelihood accepts a prior
const PriorDistribution = "GEV"

var (
	stationaryEstimationMethods    = []string{MethodLMoments, MethodMLE, MethodGMLE}
	nonStationaryEstimationMethods = []string{MethodMLE, MethodGMLE}
	uncertaintyMethods             = []string{MethodBootstrap, MethodRFPL, MethodRFGPL}
	selectionMethods               = []string{SelectionLDistance, SelectionLKurtosis, SelectionZStatistic}
	ppFormulas                     = []string{"Weibull", "Blom", "Cunnane", "Gringorten", "Hazen"}
)

// Options is the complete set of analysis settings. It is always passed
// explicitly; components never fall back to hidden defaults.
type Options struct {
	SignificanceLevel        float64   `json:"significance_level" yaml:"significance_level" msgpack:"significance_level"`
	BBMKSamples              int       `json:"bbmk_samples" yaml:"bbmk_samples" msgpack:"bbmk_samples"`
	SelectionMethod          string    `json:"selection_method" yaml:"selection_method" msgpack:"selection_method"`
	ZSamples                 int       `json:"z_samples" yaml:"z_samples" msgpack:"z_samples"`
	StationaryEstimation     string    `json:"s_estimation" yaml:"s_estimation" msgpack:"s_estimation"`
	NonStationaryEstimation  string    `json:"ns_estimation" yaml:"ns_estimation" msgpack:"ns_estimation"`
	GEVPrior                 []float64 `json:"gev_prior" yaml:"gev_prior" msgpack:"gev_prior"`
	StationaryUncertainty    string    `json:"s_uncertainty" yaml:"s_uncertainty" msgpack:"s_uncertainty"`
	NonStationaryUncertainty string    `json:"ns_uncertainty" yaml:"ns_uncertainty" msgpack:"ns_uncertainty"`
	ReturnPeriods            []int     `json:"return_periods" yaml:"return_periods" msgpack:"return_periods"`
	BootstrapSamples         int       `json:"bootstrap_samples" yaml:"bootstrap_samples" msgpack:"bootstrap_samples"`
	RFPLTolerance            float64   `json:"rfpl_tolerance" yaml:"rfpl_tolerance" msgpack:"rfpl_tolerance"`
	PPFormula                string    `json:"pp_formula" yaml:"pp_formula" msgpack:"pp_formula"`
	SliceYears               []int     `json:"slice_years" yaml:"slice_years" msgpack:"slice_years"`
}

// DefaultOptions returns the settings a new analysis session starts with
func DefaultOptions() Options {
	return Options{
		SignificanceLevel:        0.05,
		BBMKSamples:              10000,
		SelectionMethod:          SelectionLDistance,
		ZSamples:                 10000,
		StationaryEstimation:     MethodLMoments,
		NonStationaryEstimation:  MethodMLE,
		GEVPrior:                 []float64{6, 9},
		StationaryUncertainty:    MethodBootstrap,
		NonStationaryUncertainty: MethodRFPL,
		ReturnPeriods:            []int{2, 5, 10, 20, 50, 100},
		BootstrapSamples:         1000,
		RFPLTolerance:            0.1,
		PPFormula:                "Weibull",
		SliceYears:               []int{1925, 1975, 2025},
	}
}

// Validate rejects options the router or automaton could not act on
func (o Options) Validate() error {
	if o.SignificanceLevel <= 0 || o.SignificanceLevel >= 1 {
		return fmt.Errorf("%w: significance_level %v must be in (0, 1)", ErrConfig, o.SignificanceLevel)
	}
	if o.BBMKSamples <= 0 {
		return fmt.Errorf("%w: bbmk_samples must be positive", ErrConfig)
	}
	if o.ZSamples <= 0 {
		return fmt.Errorf("%w: z_samples must be positive", ErrConfig)
	}
	if o.BootstrapSamples <= 0 {
		return fmt.Errorf("%w: bootstrap_samples must be positive", ErrConfig)
	}
	if o.RFPLTolerance <= 0 {
		return fmt.Errorf("%w: rfpl_tolerance must be positive", ErrConfig)
	}
	if len(o.GEVPrior) != 2 {
		return fmt.Errorf("%w: gev_prior needs exactly two values, got %d", ErrConfig, len(o.GEVPrior))
	}
	if len(o.ReturnPeriods) == 0 {
		return fmt.Errorf("%w: return_periods must not be empty", ErrConfig)
	}
	for _, p := range o.ReturnPeriods {
		if p < 2 {
			return fmt.Errorf("%w: return period %d must be at least 2 years", ErrConfig, p)
		}
	}

	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"selection_method", o.SelectionMethod, selectionMethods},
		{"s_estimation", o.StationaryEstimation, stationaryEstimationMethods},
		{"ns_estimation", o.NonStationaryEstimation, nonStationaryEstimationMethods},
		{"s_uncertainty", o.StationaryUncertainty, uncertaintyMethods},
		{"ns_uncertainty", o.NonStationaryUncertainty, uncertaintyMethods},
		{"pp_formula", o.PPFormula, ppFormulas},
	}
	for _, c := range checks {
		if !slices.Contains(c.allowed, c.value) {
			return fmt.Errorf("%w: unknown %s %q", ErrConfig, c.field, c.value)
		}
	}

	return nil
}

// ValidDistribution reports whether name is a supported distribution family
func ValidDistribution(name string) bool {
	return slices.Contains(Distributions, name)
}
