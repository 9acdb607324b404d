package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chrissnell/floodfreq/internal/assembler"
	"github.com/chrissnell/floodfreq/internal/dataset"
	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/period"
	"github.com/chrissnell/floodfreq/internal/trend"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	rejectColor = color.New(color.FgRed, color.Bold)
	acceptColor = color.New(color.FgGreen)
	failedColor = color.New(color.FgYellow)
)

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func periodLabel(start, end int) string {
	return fmt.Sprintf("%d-%d", start, end)
}

func decision(r *ffa.TestResult) string {
	if r.Reject {
		return rejectColor.Sprint("reject")
	}
	return acceptColor.Sprint("accept")
}

// renderTable writes rows under headers with numeric columns right aligned
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// writeSegments prints descriptive statistics for each period of series
func writeSegments(w io.Writer, series ffa.Series, periods []ffa.Period) error {
	var rows [][]string
	for _, p := range periods {
		label := periodLabel(p.Start, p.End)
		s, err := dataset.Summarize(label, period.Subset(series, p))
		if err != nil {
			rows = append(rows, []string{label, "0", "", "", "", "", failedColor.Sprint("empty")})
			continue
		}
		rows = append(rows, []string{
			label,
			strconv.Itoa(s.Observations),
			fmtFloat(s.Min),
			fmtFloat(s.Max),
			fmtFloat(s.Mean),
			fmtFloat(s.StdDev),
			fmtFloat(s.Skewness),
		})
	}
	return renderTable(w, []string{"Period", "N", "Min", "Max", "Mean", "StdDev", "Skew"}, rows)
}

// writeTrend prints one row per visited node of every period
func writeTrend(w io.Writer, records []assembler.Record[trend.Items]) error {
	var rows [][]string
	for _, rec := range records {
		label := periodLabel(rec.Start, rec.End)
		if rec.Failed() {
			rows = append(rows, []string{label, "", "", "", failedColor.Sprint(rec.Error)})
			continue
		}
		for _, n := range rec.Result.Path() {
			r := rec.Result.Get(n)
			pValue := ""
			if r.PValue != nil {
				pValue = fmtFloat(*r.PValue)
			}
			rows = append(rows, []string{label, n.String(), fmtFloat(r.Statistic), pValue, decision(r)})
		}
	}
	return renderTable(w, []string{"Period", "Test", "Statistic", "p-value", "Decision"}, rows)
}

// writeEstimates prints the fitted parameters of every period
func writeEstimates(w io.Writer, records []assembler.Record[ffa.EstimationResult]) error {
	var rows [][]string
	for _, rec := range records {
		label := periodLabel(rec.Start, rec.End)
		if rec.Failed() {
			rows = append(rows, []string{label, "", "", "", failedColor.Sprint(rec.Error)})
			continue
		}
		r := rec.Result
		rows = append(rows, []string{label, r.Distribution, structureLabel(r.Structure), r.Method, formatParams(r.Params)})
	}
	return renderTable(w, []string{"Period", "Distribution", "Structure", "Method", "Parameters"}, rows)
}

func structureLabel(s ffa.Structure) string {
	switch {
	case s.Location && s.Scale:
		return "location+scale"
	case s.Location:
		return "location"
	case s.Scale:
		return "scale"
	default:
		return "stationary"
	}
}

// parseStructure accepts the labels structureLabel produces
func parseStructure(raw string) (ffa.Structure, error) {
	var s ffa.Structure
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "stationary" || raw == "none" {
		return s, nil
	}
	for _, part := range strings.Split(raw, "+") {
		switch strings.TrimSpace(part) {
		case "location":
			s.Location = true
		case "scale":
			s.Scale = true
		default:
			return s, fmt.Errorf("%w: unknown structure %q", ffa.ErrInputShape, raw)
		}
	}
	return s, nil
}

func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + fmtFloat(params[name])
	}
	return strings.Join(parts, " ")
}
