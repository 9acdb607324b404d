package main

import (
	"bytes"
	"testing"

	"github.com/chrissnell/floodfreq/internal/assembler"
	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/trend"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func ptr(v float64) *float64 { return &v }

func TestWriteTrend(t *testing.T) {
	records := []assembler.Record[trend.Items]{
		{Start: 1950, End: 1979, Result: &trend.Items{
			"white": {Reject: false, Statistic: 1.2, PValue: ptr(0.27)},
			"mk":    {Reject: true, Statistic: 3.1, PValue: ptr(0.002)},
		}},
		{Start: 1980, End: 2020, Error: "procedure mk failed: boom"},
	}

	var buf bytes.Buffer
	require.NoError(t, writeTrend(&buf, records))
	out := buf.String()

	assert.Contains(t, out, "1950-1979")
	assert.Contains(t, out, "white")
	assert.Contains(t, out, "accept")
	assert.Contains(t, out, "reject")
	assert.Contains(t, out, "0.0020")
	assert.Contains(t, out, "procedure mk failed: boom")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("white")), bytes.Index(buf.Bytes(), []byte("mk ")))
}

func TestWriteSegments(t *testing.T) {
	series := ffa.Series{Data: []float64{1, 2, 3, 4}, Years: []int{1950, 1951, 1960, 1961}}
	periods := []ffa.Period{{Start: 1950, End: 1951}, {Start: 1952, End: 1955}, {Start: 1956, End: 1961}}

	var buf bytes.Buffer
	require.NoError(t, writeSegments(&buf, series, periods))
	out := buf.String()

	assert.Contains(t, out, "1950-1951")
	assert.Contains(t, out, "1.5000")
	assert.Contains(t, out, "empty")
	assert.Contains(t, out, "3.5000")
}

func TestWriteEstimates(t *testing.T) {
	records := []assembler.Record[ffa.EstimationResult]{
		{Start: 1950, End: 2020, Result: &ffa.EstimationResult{
			Distribution: "GEV",
			Structure:    ffa.Structure{Location: true},
			Method:       ffa.MethodMLE,
			Params:       map[string]float64{"scale": 2, "location": 10},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeEstimates(&buf, records))
	out := buf.String()

	assert.Contains(t, out, "GEV")
	assert.Contains(t, out, "location=10.0000")
	assert.Contains(t, out, "scale=2.0000")
}

func TestParseStructure(t *testing.T) {
	tests := []struct {
		raw     string
		want    ffa.Structure
		wantErr bool
	}{
		{"", ffa.Structure{}, false},
		{"stationary", ffa.Structure{}, false},
		{"location", ffa.Structure{Location: true}, false},
		{"Scale", ffa.Structure{Scale: true}, false},
		{"location+scale", ffa.Structure{Location: true, Scale: true}, false},
		{"shape", ffa.Structure{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseStructure(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ffa.ErrInputShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, must(parseStructure(structureLabel(got))))
		})
	}
}

func must(s ffa.Structure, err error) ffa.Structure {
	if err != nil {
		panic(err)
	}
	return s
}

func TestPerPeriod(t *testing.T) {
	got, err := perPeriod("GEV", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"GEV", "GEV", "GEV"}, got)

	got, err = perPeriod("GEV, GUM", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"GEV", "GUM"}, got)

	_, err = perPeriod("GEV,GUM", 3)
	assert.ErrorIs(t, err, ffa.ErrInputShape)
}
