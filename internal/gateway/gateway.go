// Package gateway is the seam between the analysis pipeline and the external
// statistics backend. Every hypothesis test, fit and uncertainty procedure is
// invoked through the Gateway interface, and every diagnostic plot through a
// Renderer, so the orchestration logic can be exercised against fakes.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrissnell/floodfreq/internal/ffa"
)

// Procedure names a statistical procedure exposed by the backend
type Procedure string

// Hypothesis tests and trend estimators
const (
	ProcWhite     Procedure = "eda_white_test"
	ProcMK        Procedure = "eda_mk_test"
	ProcSensTrend Procedure = "eda_sens_trend"
	ProcRuns      Procedure = "eda_runs_test"
	ProcSpearman  Procedure = "eda_spearman_test"
	ProcBBMK      Procedure = "eda_bbmk_test"
	ProcPP        Procedure = "eda_pp_test"
	ProcKPSS      Procedure = "eda_kpss_test"
	ProcPettitt   Procedure = "eda_pettitt_test"
	ProcMKS       Procedure = "eda_mks_test"
)

// Fitting, uncertainty, selection and assessment
const (
	ProcFitLMoments      Procedure = "fit_lmom_fast"
	ProcFitMLE           Procedure = "fit_maximum_likelihood"
	ProcBootstrap        Procedure = "uncertainty_bootstrap"
	ProcRFPL             Procedure = "uncertainty_rfpl"
	ProcRFGPL            Procedure = "uncertainty_rfgpl"
	ProcSelectLDistance  Procedure = "select_ldistance"
	ProcSelectLKurtosis  Procedure = "select_lkurtosis"
	ProcSelectZStatistic Procedure = "select_zstatistic"
	ProcModelAssessment  Procedure = "model_assessment"
)

// Params carries the arguments of a procedure call. Only the fields a
// procedure consumes are set; the rest are omitted from the wire.
type Params struct {
	Data          []float64      `json:"data"`
	Years         []int          `json:"years,omitempty"`
	Alpha         float64        `json:"alpha,omitempty"`
	Samples       int            `json:"samples,omitempty"`
	Distribution  string         `json:"distribution,omitempty"`
	Structure     *ffa.Structure `json:"structure,omitempty"`
	Method        string         `json:"method,omitempty"`
	Prior         []float64      `json:"prior,omitempty"`
	Slices        []int          `json:"slices,omitempty"`
	ReturnPeriods []int          `json:"periods,omitempty"`
	Tolerance     float64        `json:"tolerance,omitempty"`
	PPFormula     string         `json:"pp_formula,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
}

// Gateway invokes a named statistical procedure and returns its raw result
// record. Implementations perform no branching of their own.
type Gateway interface {
	Invoke(ctx context.Context, proc Procedure, params Params) (json.RawMessage, error)
}

// Call invokes proc and decodes the result record into T. Every failure is
// reported as an *ffa.ProcedureError.
func Call[T any](ctx context.Context, g Gateway, proc Procedure, params Params) (*T, error) {
	raw, err := g.Invoke(ctx, proc, params)
	if err != nil {
		return nil, ffa.NewProcedureError(string(proc), err)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ffa.NewProcedureError(string(proc), fmt.Errorf("decoding result: %w", err))
	}
	return &out, nil
}

// Test invokes a hypothesis test or trend estimator
func Test(ctx context.Context, g Gateway, proc Procedure, params Params) (*ffa.TestResult, error) {
	return Call[ffa.TestResult](ctx, g, proc, params)
}
