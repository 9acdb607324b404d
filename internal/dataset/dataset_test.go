package dataset

import (
	"strings"
	"testing"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	doc := `# Station 08MF005, annual maximum daily flow
year,max,flag
1950,1210.5,
1951,NaN,B
1952,980,
# gap
1953,,E
1954.0, 1502,
`
	series, err := ReadCSV(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []int{1950, 1952, 1954}, series.Years)
	assert.Equal(t, []float64{1210.5, 980, 1502}, series.Data)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"missing column", "year,flow\n1950,10\n"},
		{"bad value", "year,max\n1950,lots\n"},
		{"bad year", "year,max\n19x0,10\n"},
		{"fractional year", "year,max\n1950.5,10\n"},
		{"no rows", "year,max\n# nothing here\n"},
		{"short row", "max,flag,year\n10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ffa.ErrInputShape)
		})
	}
}

func TestSummarize(t *testing.T) {
	series := ffa.Series{
		Data:  []float64{4, 1, 3, 2, 5},
		Years: []int{2000, 2001, 2003, 2004, 2006},
	}

	s, err := Summarize("gauge", series)
	require.NoError(t, err)

	assert.Equal(t, "gauge", s.Name)
	assert.Equal(t, 5, s.Observations)
	assert.Equal(t, 2000, s.Start)
	assert.Equal(t, 2006, s.End)
	assert.Equal(t, 2, s.Missing)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.InDelta(t, 3.0, s.Mean, 1e-12)
	assert.InDelta(t, 3.0, s.Median, 1e-12)
	assert.InDelta(t, 1.5811, s.StdDev, 1e-4)
	assert.InDelta(t, 0.0, s.Skewness, 1e-12)

	_, err = Summarize("", ffa.Series{})
	assert.ErrorIs(t, err, ffa.ErrInputShape)
}
