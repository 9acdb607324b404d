// Package pipeline runs the analysis stages for one request: it validates the
// request, segments the series into periods, evaluates every period
// independently and assembles the ordered reply.
package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"github.com/chrissnell/floodfreq/internal/assembler"
	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
	"github.com/chrissnell/floodfreq/internal/period"
	"github.com/chrissnell/floodfreq/internal/router"
	"github.com/chrissnell/floodfreq/internal/trend"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Request is the input of one analysis stage. Structures, Distributions,
// Estimations and Uncertainties hold one entry per period when the stage
// needs them.
type Request struct {
	Series        ffa.Series
	Splits        []int
	Structures    []ffa.Structure
	Distributions []string
	Estimations   []*ffa.EstimationResult
	Uncertainties []*ffa.UncertaintyResult
	Options       ffa.Options
}

// Service evaluates analysis stages. Periods of one request run concurrently,
// bounded by the worker count; nothing is shared between requests.
type Service struct {
	gw        gateway.Gateway
	render    gateway.Renderer
	automaton *trend.Automaton
	router    *router.Router
	workers   int
	logger    *zap.SugaredLogger
}

// NewService creates a service. A non-positive worker count uses GOMAXPROCS.
func NewService(gw gateway.Gateway, render gateway.Renderer, workers int, logger *zap.SugaredLogger) *Service {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Service{
		gw:        gw,
		render:    render,
		automaton: trend.NewAutomaton(gw, render, logger),
		router:    router.New(gw, render, logger),
		workers:   workers,
		logger:    logger,
	}
}

// Segments validates the series and returns its analysis periods
func (s *Service) Segments(series ffa.Series, splits []int) ([]ffa.Period, error) {
	return period.ForSeries(series, splits)
}

// ChangePoints runs the whole-series change point tests
func (s *Service) ChangePoints(ctx context.Context, series ffa.Series, opts ffa.Options) (*ffa.ChangePointResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	params := gateway.Params{Data: series.Data, Years: series.Years, Alpha: opts.SignificanceLevel}
	out := &ffa.ChangePointResult{}

	tests := []struct {
		proc gateway.Procedure
		plot gateway.PlotKind
		dst  **ffa.TestResult
	}{
		{gateway.ProcPettitt, gateway.PlotPettitt, &out.Pettitt},
		{gateway.ProcMKS, gateway.PlotMKS, &out.MKS},
	}
	for _, t := range tests {
		res, err := gateway.Test(ctx, s.gw, t.proc, params)
		if err != nil {
			return nil, err
		}
		img, err := gateway.Render(ctx, s.render, gateway.PlotRequest{Kind: t.plot, Series: series, Result: res})
		if err != nil {
			return nil, err
		}
		res.Plot = img
		*t.dst = res
	}

	return out, nil
}

// PlotSeries renders the whole series for display
func (s *Service) PlotSeries(ctx context.Context, series ffa.Series, title string) (string, error) {
	if err := series.Validate(); err != nil {
		return "", err
	}
	return gateway.Render(ctx, s.render, gateway.PlotRequest{
		Kind:   gateway.PlotDataset,
		Series: series,
		Title:  title,
	})
}

// TrendDetection runs the trend decision procedure on every period
func (s *Service) TrendDetection(ctx context.Context, req Request) ([]assembler.Record[trend.Items], error) {
	periods, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	return forEachPeriod(ctx, s, "trend detection", periods, req.Series,
		func(ctx context.Context, _ int, _ ffa.Period, sub ffa.Series) (*trend.Items, error) {
			items, err := s.automaton.Run(ctx, sub, req.Options)
			if err != nil {
				return nil, err
			}
			return &items, nil
		})
}

// DistributionSelection recommends a distribution for every period
func (s *Service) DistributionSelection(ctx context.Context, req Request) ([]assembler.Record[ffa.SelectionResult], error) {
	periods, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := checkCount("structures", len(req.Structures), len(periods)); err != nil {
		return nil, err
	}

	return forEachPeriod(ctx, s, "distribution selection", periods, req.Series,
		func(ctx context.Context, i int, _ ffa.Period, sub ffa.Series) (*ffa.SelectionResult, error) {
			return s.router.RouteSelection(ctx, sub, req.Structures[i], req.Options)
		})
}

// ParameterEstimation fits the chosen distribution to every period
func (s *Service) ParameterEstimation(ctx context.Context, req Request) ([]assembler.Record[ffa.EstimationResult], error) {
	periods, err := s.preparePerPeriod(req)
	if err != nil {
		return nil, err
	}

	return forEachPeriod(ctx, s, "parameter estimation", periods, req.Series,
		func(ctx context.Context, i int, _ ffa.Period, sub ffa.Series) (*ffa.EstimationResult, error) {
			return s.router.RouteEstimation(ctx, sub, req.Structures[i], req.Distributions[i], req.Options)
		})
}

// UncertaintyQuantification computes return levels with confidence bounds
// for every period
func (s *Service) UncertaintyQuantification(ctx context.Context, req Request) ([]assembler.Record[ffa.UncertaintyResult], error) {
	periods, err := s.preparePerPeriod(req)
	if err != nil {
		return nil, err
	}

	return forEachPeriod(ctx, s, "uncertainty quantification", periods, req.Series,
		func(ctx context.Context, i int, p ffa.Period, sub ffa.Series) (*ffa.UncertaintyResult, error) {
			return s.router.RouteUncertainty(ctx, sub, p, req.Structures[i], req.Distributions[i], req.Options)
		})
}

// ModelAssessment evaluates the fit of every estimated period
func (s *Service) ModelAssessment(ctx context.Context, req Request) ([]assembler.Record[ffa.AssessmentResult], error) {
	periods, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := checkCount("estimations", len(req.Estimations), len(periods)); err != nil {
		return nil, err
	}
	if req.Uncertainties != nil {
		if err := checkCount("uncertainty results", len(req.Uncertainties), len(periods)); err != nil {
			return nil, err
		}
	}

	return forEachPeriod(ctx, s, "model assessment", periods, req.Series,
		func(ctx context.Context, i int, _ ffa.Period, sub ffa.Series) (*ffa.AssessmentResult, error) {
			var unc *ffa.UncertaintyResult
			if req.Uncertainties != nil {
				unc = req.Uncertainties[i]
			}
			return s.router.RouteAssessment(ctx, sub, req.Estimations[i], unc, req.Options)
		})
}

// prepare rejects bad options and input shapes before any procedure runs
func (s *Service) prepare(req Request) ([]ffa.Period, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, err
	}
	return period.ForSeries(req.Series, req.Splits)
}

func (s *Service) preparePerPeriod(req Request) ([]ffa.Period, error) {
	periods, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := checkCount("structures", len(req.Structures), len(periods)); err != nil {
		return nil, err
	}
	if err := checkCount("distributions", len(req.Distributions), len(periods)); err != nil {
		return nil, err
	}
	for i, d := range req.Distributions {
		if !ffa.ValidDistribution(d) {
			return nil, fmt.Errorf("%w: period %d has unknown distribution %q", ffa.ErrInputShape, i, d)
		}
	}
	return periods, nil
}

func checkCount(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %d %s for %d periods", ffa.ErrInputShape, got, what, want)
	}
	return nil
}

type periodFunc[T any] func(ctx context.Context, i int, p ffa.Period, sub ffa.Series) (*T, error)

// forEachPeriod evaluates fn for every period concurrently. A failing period
// never cancels its siblings; its error is attached to its record.
func forEachPeriod[T any](ctx context.Context, s *Service, stage string, periods []ffa.Period, series ffa.Series, fn periodFunc[T]) ([]assembler.Record[T], error) {
	results := make([]*T, len(periods))
	errs := make([]error, len(periods))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, p := range periods {
		i, p := i, p
		g.Go(func() error {
			sub := period.Subset(series, p)
			if sub.Len() == 0 {
				errs[i] = fmt.Errorf("%w: no observations in period %s", ffa.ErrInputShape, p)
				return nil
			}
			results[i], errs[i] = fn(ctx, i, p, sub)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			s.logger.Warnw("period failed", "stage", stage, "period", periods[i].String(), "error", err)
		}
	}

	records, err := assembler.Assemble(periods, results, errs)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("stage complete", "stage", stage, "periods", len(records), "failed", assembler.Failures(records))
	return records, nil
}
