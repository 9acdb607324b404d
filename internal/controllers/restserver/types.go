package restserver

import (
	"github.com/chrissnell/floodfreq/internal/assembler"
	"github.com/chrissnell/floodfreq/internal/dataset"
	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/trend"
)

// datasetRequest is the JSON form of a dataset upload
type datasetRequest struct {
	Name  string    `json:"name,omitempty"`
	Data  []float64 `json:"data"`
	Years []int     `json:"years"`
}

// datasetResponse describes the session's series
type datasetResponse struct {
	Series  ffa.Series      `json:"series"`
	Summary dataset.Summary `json:"summary"`
}

// splitsRequest carries split years as typed by the analyst, e.g. "1985, 2001".
// A nil Splits keeps the stored split years.
type splitsRequest struct {
	Splits *string `json:"splits"`
}

type structuresRequest struct {
	Structures []ffa.Structure `json:"structures"`
}

type distributionsRequest struct {
	Distributions []string `json:"distributions"`
}

type segmentsResponse struct {
	Splits  []int        `json:"splits"`
	Periods []ffa.Period `json:"periods"`
}

// approachResponse bundles the exploratory results the analyst chooses split
// years and structures from. Stages not yet run are omitted.
type approachResponse struct {
	Series       ffa.Series                      `json:"series"`
	Splits       []int                           `json:"splits"`
	ChangePoints *ffa.ChangePointResult          `json:"change_point_detection,omitempty"`
	Trend        []assembler.Record[trend.Items] `json:"trend_detection,omitempty"`
}

type plotResponse struct {
	Plot string `json:"plot"`
}

type healthResponse struct {
	Status string `json:"status"`
}
