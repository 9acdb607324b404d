package ffa

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesValidate(t *testing.T) {
	tests := []struct {
		name    string
		series  Series
		wantErr bool
	}{
		{"matched", Series{Data: []float64{1, 2}, Years: []int{2000, 2001}}, false},
		{"mismatched", Series{Data: []float64{1, 2, 3}, Years: []int{2000, 2001}}, true},
		{"empty", Series{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputShape)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSeriesYearRangeUnsorted(t *testing.T) {
	s := Series{Data: []float64{1, 2, 3, 4}, Years: []int{1990, 1950, 2020, 1985}}
	lo, hi := s.YearRange()
	assert.Equal(t, 1950, lo)
	assert.Equal(t, 2020, hi)
}

func TestStructureIsStationary(t *testing.T) {
	assert.True(t, Structure{}.IsStationary())
	assert.False(t, Structure{Location: true}.IsStationary())
	assert.False(t, Structure{Scale: true}.IsStationary())
	assert.False(t, Structure{Location: true, Scale: true}.IsStationary())
}

func TestDefaultOptionsValid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"alpha zero", func(o *Options) { o.SignificanceLevel = 0 }},
		{"alpha one", func(o *Options) { o.SignificanceLevel = 1 }},
		{"unknown stationary estimation", func(o *Options) { o.StationaryEstimation = "Moments" }},
		{"L-moments not allowed for non-stationary", func(o *Options) { o.NonStationaryEstimation = MethodLMoments }},
		{"unknown uncertainty", func(o *Options) { o.NonStationaryUncertainty = "Jackknife" }},
		{"unknown selection", func(o *Options) { o.SelectionMethod = "AIC" }},
		{"short prior", func(o *Options) { o.GEVPrior = []float64{6} }},
		{"no return periods", func(o *Options) { o.ReturnPeriods = nil }},
		{"return period one", func(o *Options) { o.ReturnPeriods = []int{1, 10} }},
		{"zero bootstrap samples", func(o *Options) { o.BootstrapSamples = 0 }},
		{"unknown plotting position", func(o *Options) { o.PPFormula = "Median" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			assert.ErrorIs(t, opts.Validate(), ErrConfig)
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("x: %w", ErrInputShape)))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(fmt.Errorf("x: %w", ErrConfig)))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(NewProcedureError("eda_mk_test", ErrTimeout)))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(NewProcedureError("eda_mk_test", errors.New("singular"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestNewProcedureErrorDoesNotDoubleWrap(t *testing.T) {
	inner := NewProcedureError("fit_lmom_fast", errors.New("degenerate sample"))
	outer := NewProcedureError("uncertainty_bootstrap", inner)

	var pe *ProcedureError
	require.True(t, errors.As(outer, &pe))
	assert.Equal(t, "fit_lmom_fast", pe.Procedure)
}
