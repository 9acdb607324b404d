package assembler

import (
	"errors"
	"testing"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblePreservesOrder(t *testing.T) {
	periods := []ffa.Period{{Start: 1950, End: 1984}, {Start: 1985, End: 2000}, {Start: 2001, End: 2020}}
	first := &ffa.EstimationResult{Method: ffa.MethodLMoments}
	third := &ffa.EstimationResult{Method: ffa.MethodMLE}

	records, err := Assemble(periods,
		[]*ffa.EstimationResult{first, nil, third},
		[]error{nil, errors.New("procedure fit_maximum_likelihood failed: non-convergence"), nil})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 1950, records[0].Start)
	assert.Equal(t, 1984, records[0].End)
	assert.Same(t, first, records[0].Result)
	assert.False(t, records[0].Failed())

	assert.True(t, records[1].Failed())
	assert.Nil(t, records[1].Result)
	assert.Contains(t, records[1].Error, "non-convergence")

	assert.Same(t, third, records[2].Result)
	assert.Equal(t, 1, Failures(records))
}

func TestAssembleErrorWinsOverResult(t *testing.T) {
	periods := []ffa.Period{{Start: 1, End: 2}}
	records, err := Assemble(periods, []*int{new(int)}, []error{errors.New("timed out")})
	require.NoError(t, err)
	assert.Nil(t, records[0].Result)
	assert.Equal(t, "timed out", records[0].Error)
}

func TestAssembleMissingResult(t *testing.T) {
	records, err := Assemble([]ffa.Period{{Start: 1, End: 2}}, []*int{nil}, []error{nil})
	require.NoError(t, err)
	assert.True(t, records[0].Failed())
}

func TestAssembleLengthMismatch(t *testing.T) {
	_, err := Assemble([]ffa.Period{{Start: 1, End: 2}}, []*int{}, []error{nil})
	assert.Error(t, err)
}
