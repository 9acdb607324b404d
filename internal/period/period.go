// Package period splits an annual series into contiguous analysis periods.
package period

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chrissnell/floodfreq/internal/ffa"
)

// Segment turns the year range [minYear, maxYear] and the ordered split years
// into len(splits)+1 contiguous, non-overlapping periods. Each split year
// starts a new period.
func Segment(minYear, maxYear int, splits []int) ([]ffa.Period, error) {
	if minYear > maxYear {
		return nil, fmt.Errorf("%w: year range %d-%d is inverted", ffa.ErrInputShape, minYear, maxYear)
	}

	prev := minYear
	for _, s := range splits {
		if s <= minYear || s > maxYear {
			return nil, fmt.Errorf("%w: split year %d outside (%d, %d]", ffa.ErrInputShape, s, minYear, maxYear)
		}
		if s <= prev {
			return nil, fmt.Errorf("%w: split years must be strictly increasing", ffa.ErrInputShape)
		}
		prev = s
	}

	periods := make([]ffa.Period, 0, len(splits)+1)
	start := minYear
	for _, s := range splits {
		periods = append(periods, ffa.Period{Start: start, End: s - 1})
		start = s
	}
	periods = append(periods, ffa.Period{Start: start, End: maxYear})

	return periods, nil
}

// ForSeries validates the series and segments its year range
func ForSeries(series ffa.Series, splits []int) ([]ffa.Period, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	lo, hi := series.YearRange()
	return Segment(lo, hi, splits)
}

// Subset returns the (year, value) pairs of series that fall within p,
// preserving their original order.
func Subset(series ffa.Series, p ffa.Period) ffa.Series {
	var out ffa.Series
	for i, y := range series.Years {
		if p.Contains(y) {
			out.Data = append(out.Data, series.Data[i])
			out.Years = append(out.Years, y)
		}
	}
	return out
}

// ParseSplits parses a comma-separated list of split years as entered in
// the analysis form. An empty string means no splits. Every year must lie
// after the first year and no later than the last; the result is sorted.
func ParseSplits(raw string, years []int) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []int{}, nil
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("%w: no dataset years to validate split points against", ffa.ErrInputShape)
	}

	lo, hi := years[0], years[0]
	for _, y := range years {
		lo = min(lo, y)
		hi = max(hi, y)
	}

	var splits []int
	for _, item := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return nil, fmt.Errorf("%w: split point %q is not a year", ffa.ErrInputShape, item)
		}
		if v <= lo || v > hi {
			return nil, fmt.Errorf("%w: split point %d outside (%d, %d]", ffa.ErrInputShape, v, lo, hi)
		}
		splits = append(splits, v)
	}

	sort.Ints(splits)
	return splits, nil
}
