// Package dataset reads annual maximum series and summarizes them.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Column names a CSV upload must carry
const (
	ColumnMax  = "max"
	ColumnYear = "year"
)

// ReadCSV reads a series from CSV with a header row naming at least the
// max and year columns. Lines starting with '#' are skipped, as are rows
// whose max is empty or NaN.
func ReadCSV(r io.Reader) (ffa.Series, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ffa.Series{}, fmt.Errorf("%w: empty CSV", ffa.ErrInputShape)
	}
	if err != nil {
		return ffa.Series{}, fmt.Errorf("%w: failed to read CSV: %v", ffa.ErrInputShape, err)
	}

	maxCol := slices.Index(header, ColumnMax)
	yearCol := slices.Index(header, ColumnYear)
	if maxCol < 0 || yearCol < 0 {
		return ffa.Series{}, fmt.Errorf("%w: CSV must contain '%s' and '%s' columns", ffa.ErrInputShape, ColumnMax, ColumnYear)
	}

	var series ffa.Series
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ffa.Series{}, fmt.Errorf("%w: failed to read CSV: %v", ffa.ErrInputShape, err)
		}
		if maxCol >= len(row) || yearCol >= len(row) {
			return ffa.Series{}, fmt.Errorf("%w: row %d is missing columns", ffa.ErrInputShape, line)
		}

		raw := strings.TrimSpace(row[maxCol])
		if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "na") {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(value) {
			return ffa.Series{}, fmt.Errorf("%w: row %d: bad max %q", ffa.ErrInputShape, line, raw)
		}
		year, err := parseYear(row[yearCol])
		if err != nil {
			return ffa.Series{}, fmt.Errorf("%w: row %d: bad year %q", ffa.ErrInputShape, line, row[yearCol])
		}

		series.Data = append(series.Data, value)
		series.Years = append(series.Years, year)
	}

	if err := series.Validate(); err != nil {
		return ffa.Series{}, err
	}
	return series, nil
}

// parseYear accepts integral floats like "1985.0" as written by spreadsheets
func parseYear(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if y, err := strconv.Atoi(raw); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a year: %q", raw)
	}
	return int(f), nil
}

// Summary describes a series
type Summary struct {
	Name         string  `json:"name,omitempty"`
	Observations int     `json:"observations"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	Missing      int     `json:"missing_years"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	StdDev       float64 `json:"std_dev"`
	Skewness     float64 `json:"skewness"`
}

// Summarize computes descriptive statistics of a validated series
func Summarize(name string, series ffa.Series) (Summary, error) {
	if err := series.Validate(); err != nil {
		return Summary{}, err
	}

	start, end := series.YearRange()
	years := make(map[int]struct{}, series.Len())
	for _, y := range series.Years {
		years[y] = struct{}{}
	}

	sorted := append([]float64(nil), series.Data...)
	slices.Sort(sorted)

	s := Summary{
		Name:         name,
		Observations: series.Len(),
		Start:        start,
		End:          end,
		Missing:      end - start + 1 - len(years),
		Min:          floats.Min(series.Data),
		Max:          floats.Max(series.Data),
		Mean:         stat.Mean(series.Data, nil),
		Median:       stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if series.Len() > 1 {
		s.StdDev = stat.StdDev(series.Data, nil)
	}
	if series.Len() > 2 && s.StdDev > 0 {
		s.Skewness = stat.Skew(series.Data, nil)
	}
	return s, nil
}
