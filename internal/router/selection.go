package router

import (
	"context"
	"fmt"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
)

// PlanSelection picks the distribution-selection procedure for a period
func PlanSelection(series ffa.Series, structure ffa.Structure, opts ffa.Options) (gateway.Procedure, gateway.Params, error) {
	params := gateway.Params{
		Data:      series.Data,
		Years:     series.Years,
		Structure: &structure,
	}

	switch opts.SelectionMethod {
	case ffa.SelectionLDistance:
		return gateway.ProcSelectLDistance, params, nil
	case ffa.SelectionLKurtosis:
		return gateway.ProcSelectLKurtosis, params, nil
	case ffa.SelectionZStatistic:
		params.Samples = opts.ZSamples
		return gateway.ProcSelectZStatistic, params, nil
	default:
		return "", gateway.Params{}, fmt.Errorf("%w: unknown selection method %q", ffa.ErrConfig, opts.SelectionMethod)
	}
}

// RouteSelection recommends a distribution for one period and attaches the
// L-moment ratio diagram
func (r *Router) RouteSelection(ctx context.Context, series ffa.Series, structure ffa.Structure, opts ffa.Options) (*ffa.SelectionResult, error) {
	proc, params, err := PlanSelection(series, structure, opts)
	if err != nil {
		return nil, err
	}

	res, err := gateway.Call[ffa.SelectionResult](ctx, r.gw, proc, params)
	if err != nil {
		return nil, err
	}
	res.Method = opts.SelectionMethod

	img, err := gateway.Render(ctx, r.render, gateway.PlotRequest{
		Kind:      gateway.PlotLMomentRatios,
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

// RouteAssessment evaluates the goodness of fit of an estimated period. The
// uncertainty result, when present, is drawn alongside the fit.
func (r *Router) RouteAssessment(ctx context.Context, series ffa.Series, est *ffa.EstimationResult, unc *ffa.UncertaintyResult, opts ffa.Options) (*ffa.AssessmentResult, error) {
	if est == nil {
		return nil, fmt.Errorf("%w: model assessment requires a parameter estimate", ffa.ErrInputShape)
	}

	structure := est.Structure
	fitted := make(map[string]any, len(est.Params))
	for k, v := range est.Params {
		fitted[k] = v
	}

	params := gateway.Params{
		Data:         series.Data,
		Years:        series.Years,
		Distribution: est.Distribution,
		Structure:    &structure,
		Method:       est.Method,
		Alpha:        opts.SignificanceLevel,
		PPFormula:    opts.PPFormula,
		Params:       fitted,
	}

	res, err := gateway.Call[ffa.AssessmentResult](ctx, r.gw, gateway.ProcModelAssessment, params)
	if err != nil {
		return nil, err
	}
	res.Distribution = est.Distribution
	res.Structure = structure

	kind := gateway.PlotAssessment
	if !structure.IsStationary() {
		kind = gateway.PlotNSAssessment
	}
	req := gateway.PlotRequest{Kind: kind, Series: series, Structure: &structure, Result: res}
	if unc != nil {
		req.Reference = unc
	}

	img, err := gateway.Render(ctx, r.render, req)
	if err != nil {
		return nil, err
	}
	res.Plot = img
	return res, nil
}
