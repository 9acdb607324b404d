// Package assembler merges per-period outputs into the ordered reply.
package assembler

import (
	"fmt"

	"github.com/chrissnell/floodfreq/internal/ffa"
)

// Record is the reply for one period. Exactly one of Result and Error is set.
type Record[T any] struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Result *T     `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the period's computation failed
func (r Record[T]) Failed() bool {
	return r.Error != ""
}

// Assemble pairs each period with its result or error, in period order.
// A failed period carries no result.
func Assemble[T any](periods []ffa.Period, results []*T, errs []error) ([]Record[T], error) {
	if len(results) != len(periods) || len(errs) != len(periods) {
		return nil, fmt.Errorf("assembling %d periods from %d results and %d errors", len(periods), len(results), len(errs))
	}

	records := make([]Record[T], len(periods))
	for i, p := range periods {
		records[i] = Record[T]{Start: p.Start, End: p.End}
		switch {
		case errs[i] != nil:
			records[i].Error = errs[i].Error()
		case results[i] == nil:
			records[i].Error = "no result produced"
		default:
			records[i].Result = results[i]
		}
	}
	return records, nil
}

// Failures counts the failed records
func Failures[T any](records []Record[T]) int {
	n := 0
	for _, r := range records {
		if r.Failed() {
			n++
		}
	}
	return n
}
