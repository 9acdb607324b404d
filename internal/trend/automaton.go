package trend

import (
	"context"
	"fmt"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
	"go.uber.org/zap"
)

// Automaton runs the decision procedure for one period at a time. It holds
// no per-run state and is safe for concurrent use.
type Automaton struct {
	gw     gateway.Gateway
	render gateway.Renderer
	logger *zap.SugaredLogger
}

// NewAutomaton creates an automaton that calls procedures through gw and
// draws plots through render
func NewAutomaton(gw gateway.Gateway, render gateway.Renderer, logger *zap.SugaredLogger) *Automaton {
	return &Automaton{
		gw:     gw,
		render: render,
		logger: logger,
	}
}

// Run executes the procedure on one period's series, starting at node 1 and
// stopping when the transition function yields no successor. If any node
// fails the whole run fails; partial results are never returned.
func (a *Automaton) Run(ctx context.Context, series ffa.Series, opts ffa.Options) (Items, error) {
	items := make(Items)
	node := Start

	for {
		res, err := a.Step(ctx, node, series, items, opts)
		if err != nil {
			return nil, fmt.Errorf("trend node %s: %w", node, err)
		}
		items[node.Item()] = res

		a.logger.Debugw("trend node complete", "node", node.String(), "reject", res.Reject)

		next, ok := Next(node, items)
		if !ok {
			return items, nil
		}
		node = next
	}
}

// Step invokes the procedure for node n. It reads earlier results from items
// but never modifies them.
func (a *Automaton) Step(ctx context.Context, n Node, series ffa.Series, items Items, opts ffa.Options) (*ffa.TestResult, error) {
	alpha := opts.SignificanceLevel
	raw := gateway.Params{Data: series.Data, Years: series.Years, Alpha: alpha}

	switch n {
	case NodeWhite:
		return gateway.Test(ctx, a.gw, gateway.ProcWhite, raw)

	case NodeMWMK:
		mw, err := variability(series)
		if err != nil {
			return nil, err
		}
		return gateway.Test(ctx, a.gw, gateway.ProcMK, gateway.Params{Data: mw.Data, Years: mw.Years, Alpha: alpha})

	case NodeSensVariance:
		mw, err := variability(series)
		if err != nil {
			return nil, err
		}
		res, err := gateway.Test(ctx, a.gw, gateway.ProcSensTrend, gateway.Params{Data: mw.Data, Years: mw.Years})
		if err != nil {
			return nil, err
		}
		return a.attachPlot(ctx, res, gateway.PlotRequest{Kind: gateway.PlotSensTrend, Series: mw, Result: res, Title: "Moving-window variability"})

	case NodeRunsVariance:
		mw, err := variability(series)
		if err != nil {
			return nil, err
		}
		return a.runsTest(ctx, items.Get(NodeSensVariance), mw.Years, alpha)

	case NodeMK:
		return gateway.Test(ctx, a.gw, gateway.ProcMK, raw)

	case NodeSpearman:
		res, err := gateway.Test(ctx, a.gw, gateway.ProcSpearman, raw)
		if err != nil {
			return nil, err
		}
		return a.attachPlot(ctx, res, gateway.PlotRequest{Kind: gateway.PlotSpearman, Series: series, Result: res})

	case NodeBBMK:
		params := raw
		params.Samples = opts.BBMKSamples
		res, err := gateway.Test(ctx, a.gw, gateway.ProcBBMK, params)
		if err != nil {
			return nil, err
		}
		return a.attachPlot(ctx, res, gateway.PlotRequest{Kind: gateway.PlotBBMK, Series: series, Result: res})

	case NodePP:
		return gateway.Test(ctx, a.gw, gateway.ProcPP, raw)

	case NodeKPSS:
		return gateway.Test(ctx, a.gw, gateway.ProcKPSS, raw)

	case NodeSensMean:
		res, err := gateway.Test(ctx, a.gw, gateway.ProcSensTrend, gateway.Params{Data: series.Data, Years: series.Years})
		if err != nil {
			return nil, err
		}
		req := gateway.PlotRequest{Kind: gateway.PlotSensTrend, Series: series, Result: res, Title: "Annual maxima"}
		if ref := items.Get(NodeSensVariance); ref != nil {
			req.Reference = ref
		}
		return a.attachPlot(ctx, res, req)

	case NodeRunsMean:
		return a.runsTest(ctx, items.Get(NodeSensMean), series.Years, alpha)

	default:
		return nil, fmt.Errorf("unknown trend node %d", int(n))
	}
}

// runsTest checks the residuals of a Sen's trend estimate for randomness
func (a *Automaton) runsTest(ctx context.Context, sens *ffa.TestResult, years []int, alpha float64) (*ffa.TestResult, error) {
	if sens == nil {
		return nil, fmt.Errorf("runs test requires a Sen's trend estimate")
	}
	if len(sens.Residuals) != len(years) {
		return nil, ffa.NewProcedureError(string(gateway.ProcSensTrend),
			fmt.Errorf("got %d residuals for %d years", len(sens.Residuals), len(years)))
	}

	residuals := ffa.Series{Data: sens.Residuals, Years: years}
	res, err := gateway.Test(ctx, a.gw, gateway.ProcRuns, gateway.Params{Data: residuals.Data, Years: residuals.Years, Alpha: alpha})
	if err != nil {
		return nil, err
	}
	return a.attachPlot(ctx, res, gateway.PlotRequest{Kind: gateway.PlotRunsTest, Series: residuals, Result: res})
}

func (a *Automaton) attachPlot(ctx context.Context, res *ffa.TestResult, req gateway.PlotRequest) (*ffa.TestResult, error) {
	img, err := gateway.Render(ctx, a.render, req)
	if err != nil {
		return nil, err
	}
	res.Plot = img
	return res, nil
}

func variability(series ffa.Series) (ffa.Series, error) {
	mw, err := MovingWindowVariability(series, WindowSize, WindowStep)
	if err != nil {
		return ffa.Series{}, ffa.NewProcedureError("mw_variability", err)
	}
	return mw, nil
}
