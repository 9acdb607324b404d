package gateway

import (
	"context"

	"github.com/chrissnell/floodfreq/internal/ffa"
)

// PlotKind names a diagnostic plot the renderer knows how to draw
type PlotKind string

const (
	PlotDataset       PlotKind = "dataset"
	PlotSensTrend     PlotKind = "sens_trend"
	PlotRunsTest      PlotKind = "runs_test"
	PlotSpearman      PlotKind = "spearman_test"
	PlotBBMK          PlotKind = "bbmk_test"
	PlotPettitt       PlotKind = "pettitt_test"
	PlotMKS           PlotKind = "mks_test"
	PlotLMomentRatios PlotKind = "lmom_diagram"
	PlotUncertainty   PlotKind = "uncertainty"
	PlotNSUncertainty PlotKind = "ns_uncertainty"
	PlotAssessment    PlotKind = "model_assessment"
	PlotNSAssessment  PlotKind = "ns_model_assessment"
)

// PlotRequest is everything the renderer needs to draw one plot. Reference
// is an optional second result drawn alongside Result.
type PlotRequest struct {
	Kind      PlotKind       `json:"kind"`
	Series    ffa.Series     `json:"series"`
	Structure *ffa.Structure `json:"structure,omitempty"`
	Result    any            `json:"result"`
	Reference any            `json:"reference,omitempty"`
	Title     string         `json:"title,omitempty"`
}

// Renderer turns a plot request into an encoded image (a data URI)
type Renderer interface {
	Render(ctx context.Context, req PlotRequest) (string, error)
}

// Render draws req and reports failures as procedure errors
func Render(ctx context.Context, r Renderer, req PlotRequest) (string, error) {
	img, err := r.Render(ctx, req)
	if err != nil {
		return "", ffa.NewProcedureError("plot_"+string(req.Kind), err)
	}
	return img, nil
}
