// Package ffa holds the domain types shared by every stage of the
// flood-frequency analysis pipeline.
package ffa

import "fmt"

// Series is an annual extreme-value sample: Data[i] was observed in Years[i].
// Years need not be contiguous or sorted; gaps are missing years.
type Series struct {
	Data  []float64 `json:"data"`
	Years []int     `json:"years"`
}

// Validate checks that the series is non-empty and that every value has a year
func (s Series) Validate() error {
	if len(s.Data) != len(s.Years) {
		return fmt.Errorf("%w: %d values but %d years", ErrInputShape, len(s.Data), len(s.Years))
	}
	if len(s.Data) == 0 {
		return fmt.Errorf("%w: empty series", ErrInputShape)
	}
	return nil
}

// Len returns the number of (year, value) pairs
func (s Series) Len() int {
	return len(s.Data)
}

// YearRange returns the smallest and largest year in the series.
// It panics on an empty series; call Validate first.
func (s Series) YearRange() (int, int) {
	lo, hi := s.Years[0], s.Years[0]
	for _, y := range s.Years[1:] {
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	return lo, hi
}

// Period is an inclusive range of years analysed as one unit
type Period struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether year falls inside the period bounds
func (p Period) Contains(year int) bool {
	return year >= p.Start && year <= p.End
}

func (p Period) String() string {
	return fmt.Sprintf("%d-%d", p.Start, p.End)
}

// Structure describes which distribution parameters vary with time in a period
type Structure struct {
	Location bool `json:"location"`
	Scale    bool `json:"scale"`
}

// IsStationary is true when neither location nor scale varies with time
func (s Structure) IsStationary() bool {
	return !s.Location && !s.Scale
}

// TestResult is the outcome of a single hypothesis test or trend estimate
type TestResult struct {
	Reject    bool           `json:"reject"`
	Statistic float64        `json:"statistic"`
	PValue    *float64       `json:"p_value,omitempty"`
	Slope     *float64       `json:"slope,omitempty"`
	Intercept *float64       `json:"intercept,omitempty"`
	Residuals []float64      `json:"residuals,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Plot      string         `json:"plot,omitempty"`
}

// EstimationResult holds fitted distribution parameters for one period
type EstimationResult struct {
	Distribution string             `json:"distribution"`
	Structure    Structure          `json:"structure"`
	Method       string             `json:"method"`
	Params       map[string]float64 `json:"params"`
}

// ReturnLevel is one return-period estimate with its confidence bounds
type ReturnLevel struct {
	Period   int     `json:"period"`
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// SliceEstimates are the return levels evaluated at one slice year.
// Stationary periods carry a single entry at StationarySliceYear.
type SliceEstimates struct {
	Year   int           `json:"year"`
	Levels []ReturnLevel `json:"levels"`
}

// UncertaintyResult holds return-level estimates with confidence intervals
type UncertaintyResult struct {
	Distribution string           `json:"distribution"`
	Structure    Structure        `json:"structure"`
	Method       string           `json:"method"`
	Estimates    []SliceEstimates `json:"estimates"`
	Plot         string           `json:"plot,omitempty"`
}

// ChangePointResult collects the whole-series change point tests
type ChangePointResult struct {
	Pettitt *TestResult `json:"pettitt"`
	MKS     *TestResult `json:"mks"`
}

// SelectionResult is the outcome of distribution selection for one period
type SelectionResult struct {
	Method      string                        `json:"method"`
	Recommended string                        `json:"recommended"`
	Metrics     map[string]map[string]float64 `json:"metrics,omitempty"`
	Plot        string                        `json:"plot,omitempty"`
}

// AssessmentResult holds goodness-of-fit metrics for one fitted period
type AssessmentResult struct {
	Distribution string             `json:"distribution"`
	Structure    Structure          `json:"structure"`
	Metrics      map[string]float64 `json:"metrics"`
	Plot         string             `json:"plot,omitempty"`
}
