package trend

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"gonum.org/v1/gonum/stat"
)

// Moving-window parameters used for the variance-trend nodes
const (
	WindowSize = 10
	WindowStep = 5
)

// ErrInsufficientData is returned when a series is shorter than one window
var ErrInsufficientData = errors.New("series shorter than the moving window")

// MovingWindowVariability computes the sample standard deviation of each
// window of size consecutive observations, advancing step observations at a
// time. Observations are ordered by year first, so the result depends only on
// the set of (year, value) pairs. Each window is labelled with its mean year,
// rounded half away from zero.
func MovingWindowVariability(series ffa.Series, size, step int) (ffa.Series, error) {
	if size < 2 || step < 1 {
		return ffa.Series{}, fmt.Errorf("invalid moving window %d/%d", size, step)
	}
	n := series.Len()
	if n < size {
		return ffa.Series{}, fmt.Errorf("%w: %d observations, window of %d", ErrInsufficientData, n, size)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return series.Years[idx[a]] < series.Years[idx[b]] })

	data := make([]float64, n)
	years := make([]float64, n)
	for i, j := range idx {
		data[i] = series.Data[j]
		years[i] = float64(series.Years[j])
	}

	var out ffa.Series
	for start := 0; start+size <= n; start += step {
		out.Data = append(out.Data, stat.StdDev(data[start:start+size], nil))
		out.Years = append(out.Years, int(math.Round(stat.Mean(years[start:start+size], nil))))
	}
	return out, nil
}
