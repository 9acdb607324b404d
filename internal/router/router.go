// Package router picks the concrete estimation, uncertainty, selection and
// assessment procedure for a period from its structure and the configured
// method names.
package router

import (
	"context"
	"fmt"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
	"go.uber.org/zap"
)

// Router is shared by every period-based operation. It holds no per-call
// state and is safe for concurrent use.
type Router struct {
	gw     gateway.Gateway
	render gateway.Renderer
	logger *zap.SugaredLogger
}

// New creates a router calling procedures through gw and plots through render
func New(gw gateway.Gateway, render gateway.Renderer, logger *zap.SugaredLogger) *Router {
	return &Router{
		gw:     gw,
		render: render,
		logger: logger,
	}
}

// EstimationPlan is the procedure chosen for a fit and its arguments
type EstimationPlan struct {
	Method    string
	Procedure gateway.Procedure
	Params    gateway.Params
}

// PlanEstimation selects the fitting procedure without invoking it.
// Stationary periods use the stationary method: L-moments fits on the data
// alone, anything else falls back to maximum likelihood without a prior.
// Non-stationary periods use maximum likelihood, with the configured prior
// unless the method is plain MLE.
func PlanEstimation(series ffa.Series, structure ffa.Structure, distribution string, opts ffa.Options) (EstimationPlan, error) {
	if !ffa.ValidDistribution(distribution) {
		return EstimationPlan{}, fmt.Errorf("%w: unknown distribution %q", ffa.ErrInputShape, distribution)
	}

	mle := gateway.Params{
		Data:         series.Data,
		Years:        series.Years,
		Distribution: distribution,
		Structure:    &structure,
	}

	if structure.IsStationary() {
		switch opts.StationaryEstimation {
		case ffa.MethodLMoments:
			return EstimationPlan{
				Method:    ffa.MethodLMoments,
				Procedure: gateway.ProcFitLMoments,
				Params:    gateway.Params{Data: series.Data, Distribution: distribution},
			}, nil
		case ffa.MethodMLE, ffa.MethodGMLE:
			return EstimationPlan{Method: ffa.MethodMLE, Procedure: gateway.ProcFitMLE, Params: mle}, nil
		default:
			return EstimationPlan{}, fmt.Errorf("%w: unknown stationary estimation method %q", ffa.ErrConfig, opts.StationaryEstimation)
		}
	}

	switch opts.NonStationaryEstimation {
	case ffa.MethodMLE:
		return EstimationPlan{Method: ffa.MethodMLE, Procedure: gateway.ProcFitMLE, Params: mle}, nil
	case ffa.MethodGMLE:
		mle.Prior = priorFor(distribution, opts)
		return EstimationPlan{Method: ffa.MethodGMLE, Procedure: gateway.ProcFitMLE, Params: mle}, nil
	default:
		return EstimationPlan{}, fmt.Errorf("%w: unknown non-stationary estimation method %q", ffa.ErrConfig, opts.NonStationaryEstimation)
	}
}

// RouteEstimation fits distribution to one period's series
func (r *Router) RouteEstimation(ctx context.Context, series ffa.Series, structure ffa.Structure, distribution string, opts ffa.Options) (*ffa.EstimationResult, error) {
	plan, err := PlanEstimation(series, structure, distribution, opts)
	if err != nil {
		return nil, err
	}

	r.logger.Debugw("routing estimation", "procedure", plan.Procedure, "method", plan.Method, "stationary", structure.IsStationary())

	res, err := gateway.Call[ffa.EstimationResult](ctx, r.gw, plan.Procedure, plan.Params)
	if err != nil {
		return nil, err
	}
	res.Distribution = distribution
	res.Structure = structure
	res.Method = plan.Method
	return res, nil
}

// priorFor returns the configured prior for the one family that takes it
func priorFor(distribution string, opts ffa.Options) []float64 {
	if distribution != ffa.PriorDistribution {
		return nil
	}
	return append([]float64(nil), opts.GEVPrior...)
}
