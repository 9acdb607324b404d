package router

import (
	"context"
	"fmt"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
)

// UncertaintyPlan is the uncertainty procedure chosen for a period, its
// arguments and the plot drawn from its result
type UncertaintyPlan struct {
	Method    string
	Procedure gateway.Procedure
	Params    gateway.Params
	Plot      gateway.PlotKind
}

// PlanUncertainty selects the uncertainty procedure without invoking it.
// Stationary periods are evaluated once at the sentinel slice year;
// non-stationary periods at every configured slice year inside the period,
// or at the period's last year if none falls inside it.
func PlanUncertainty(series ffa.Series, p ffa.Period, structure ffa.Structure, distribution string, opts ffa.Options) (UncertaintyPlan, error) {
	// Bootstrap refits with the period's estimation method, so it must route too
	fit, err := PlanEstimation(series, structure, distribution, opts)
	if err != nil {
		return UncertaintyPlan{}, err
	}

	plan := UncertaintyPlan{
		Method: opts.StationaryUncertainty,
		Plot:   gateway.PlotUncertainty,
	}
	slices := []int{ffa.StationarySliceYear}

	if !structure.IsStationary() {
		plan.Method = opts.NonStationaryUncertainty
		plan.Plot = gateway.PlotNSUncertainty
		slices = slicesWithin(opts.SliceYears, p)
	}

	plan.Params = gateway.Params{
		Data:          series.Data,
		Years:         series.Years,
		Distribution:  distribution,
		Method:        fit.Method,
		Structure:     &structure,
		Slices:        slices,
		Alpha:         opts.SignificanceLevel,
		ReturnPeriods: append([]int(nil), opts.ReturnPeriods...),
	}

	switch plan.Method {
	case ffa.MethodBootstrap:
		plan.Procedure = gateway.ProcBootstrap
		plan.Params.Prior = priorFor(distribution, opts)
		plan.Params.Samples = opts.BootstrapSamples
	case ffa.MethodRFPL:
		plan.Procedure = gateway.ProcRFPL
		plan.Params.Tolerance = opts.RFPLTolerance
	case ffa.MethodRFGPL:
		plan.Procedure = gateway.ProcRFGPL
		plan.Params.Prior = priorFor(distribution, opts)
		plan.Params.Tolerance = opts.RFPLTolerance
	default:
		return UncertaintyPlan{}, fmt.Errorf("%w: unknown uncertainty method %q", ffa.ErrConfig, plan.Method)
	}

	return plan, nil
}

// RouteUncertainty computes return levels with confidence bounds for one
// period and attaches the diagnostic plot
func (r *Router) RouteUncertainty(ctx context.Context, series ffa.Series, p ffa.Period, structure ffa.Structure, distribution string, opts ffa.Options) (*ffa.UncertaintyResult, error) {
	plan, err := PlanUncertainty(series, p, structure, distribution, opts)
	if err != nil {
		return nil, err
	}

	r.logger.Debugw("routing uncertainty", "procedure", plan.Procedure, "method", plan.Method, "period", p.String(), "slices", plan.Params.Slices)

	res, err := gateway.Call[ffa.UncertaintyResult](ctx, r.gw, plan.Procedure, plan.Params)
	if err != nil {
		return nil, err
	}
	res.Distribution = distribution
	res.Structure = structure
	res.Method = plan.Method

	img, err := gateway.Render(ctx, r.render, gateway.PlotRequest{
		Kind:      plan.Plot,
		Series:    series,
		Structure: &structure,
		Result:    res,
	})
	if err != nil {
		return nil, err
	}
	res.Plot = img
	return res, nil
}

func slicesWithin(years []int, p ffa.Period) []int {
	var out []int
	for _, y := range years {
		if p.Contains(y) {
			out = append(out, y)
		}
	}
	if len(out) == 0 {
		out = []int{p.End}
	}
	return out
}
