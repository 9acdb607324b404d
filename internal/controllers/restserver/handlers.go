package restserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chrissnell/floodfreq/internal/assembler"
	"github.com/chrissnell/floodfreq/internal/dataset"
	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
	"github.com/chrissnell/floodfreq/internal/period"
	"github.com/chrissnell/floodfreq/internal/pipeline"
	"github.com/chrissnell/floodfreq/internal/session"
	"github.com/chrissnell/floodfreq/internal/trend"
	"github.com/chrissnell/floodfreq/pkg/responseformat"
)

const maxUploadBytes = 10 << 20

// errPrerequisite marks a request that needs an earlier stage first
var errPrerequisite = errors.New("missing prerequisite")

var errNoDataset = fmt.Errorf("%w: no dataset has been uploaded in this session", errPrerequisite)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// GetHealth reports that the server is up
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, healthResponse{Status: "ok"}, nil)
}

// GetOptions returns the session's analysis options
func (h *Handlers) GetOptions(w http.ResponseWriter, req *http.Request) {
	opts, err := h.options(req.Context(), sessionFrom(req))
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, opts, nil)
}

// PutOptions overlays the request body on the session's options and stores
// the result if it validates
func (h *Handlers) PutOptions(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)

	opts, err := h.options(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if err := decodeBody(req, &opts); err != nil {
		h.writeError(w, req, err)
		return
	}
	if err := opts.Validate(); err != nil {
		h.writeError(w, req, err)
		return
	}

	if err := sess.Write(ctx, map[string]any{session.FieldOptions: opts}); err != nil {
		h.writeError(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, opts, nil)
}

// GetDataset returns the session's series and its summary
func (h *Handlers) GetDataset(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)

	series, err := loadSeries(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	var summary dataset.Summary
	if _, err := sess.Cached(ctx, session.StageDataset, &summary); err != nil {
		h.writeError(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, datasetResponse{Series: series, Summary: summary}, nil)
}

// PostDataset replaces the session's series, from a multipart CSV upload in
// the "file" field or a JSON body. Every stage result and every choice made
// for the previous series is discarded.
func (h *Handlers) PostDataset(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)

	name, series, err := readDataset(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	summary, err := dataset.Summarize(name, series)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	if err := sess.Enter(ctx, session.StageDataset, true); err != nil {
		h.writeError(w, req, err)
		return
	}
	if err := sess.Clear(ctx, session.FieldSplits, session.FieldStructures, session.FieldDistributions); err != nil {
		h.writeError(w, req, err)
		return
	}
	err = sess.Write(ctx, map[string]any{
		session.FieldSeries:          series,
		string(session.StageDataset): summary,
	})
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	h.controller.logger.Infow("dataset stored", "uid", sess.UID(), "name", name, "observations", series.Len())
	h.formatter.WriteResponse(w, req, datasetResponse{Series: series, Summary: summary}, nil)
}

func readDataset(req *http.Request) (string, ffa.Series, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body datasetRequest
		if err := decodeBody(req, &body); err != nil {
			return "", ffa.Series{}, err
		}
		series := ffa.Series{Data: body.Data, Years: body.Years}
		if err := series.Validate(); err != nil {
			return "", ffa.Series{}, err
		}
		return body.Name, series, nil
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		return "", ffa.Series{}, fmt.Errorf("%w: no file uploaded: %v", ffa.ErrInputShape, err)
	}
	defer file.Close()

	series, err := dataset.ReadCSV(file)
	if err != nil {
		return "", ffa.Series{}, err
	}
	return filepath.Base(header.Filename), series, nil
}

// GetDatasetPlot renders the session's series. With ?download the decoded
// PNG is sent as an attachment instead of the data URI.
func (h *Handlers) GetDatasetPlot(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)

	series, err := loadSeries(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	var summary dataset.Summary
	if _, err := sess.Cached(ctx, session.StageDataset, &summary); err != nil {
		h.writeError(w, req, err)
		return
	}

	img, err := h.controller.service.PlotSeries(ctx, series, summary.Name)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	if _, ok := req.URL.Query()["download"]; !ok {
		h.formatter.WriteResponse(w, req, plotResponse{Plot: img}, nil)
		return
	}

	png, err := decodeDataURI(img)
	if err != nil {
		h.writeError(w, req, ffa.NewProcedureError("plot_"+string(gateway.PlotDataset), err))
		return
	}
	name := strings.TrimSuffix(summary.Name, filepath.Ext(summary.Name))
	if name == "" {
		name = "dataset"
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ".png"}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.controller.logger.Warnw("error writing plot", "uid", sess.UID(), "error", err)
	}
}

func decodeDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, errors.New("renderer returned no image payload")
	}
	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// GetSegments previews the periods for the splits query parameter, or for
// the stored split years when the parameter is absent
func (h *Handlers) GetSegments(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)

	series, err := loadSeries(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	var splits []int
	if raw, ok := req.URL.Query()["splits"]; ok {
		splits, err = period.ParseSplits(raw[0], series.Years)
	} else {
		splits, err = loadSplits(ctx, sess)
	}
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	periods, err := h.controller.service.Segments(series, splits)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, segmentsResponse{Splits: splits, Periods: periods}, nil)
}

// PostChangePoints runs the change point tests on the whole series
func (h *Handlers) PostChangePoints(w http.ResponseWriter, req *http.Request) {
	serveStage(h, w, req, session.StageChangePoints, repeatRequested(req), nil,
		func(ctx context.Context, sess *session.Session) (*ffa.ChangePointResult, error) {
			series, opts, err := h.inputs(ctx, sess)
			if err != nil {
				return nil, err
			}
			return h.controller.service.ChangePoints(ctx, series, opts)
		})
}

// PostTrendDetection runs trend detection per period. Split years in the
// body replace the stored ones.
func (h *Handlers) PostTrendDetection(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)
	repeat := repeatRequested(req)

	var body splitsRequest
	if err := decodeBody(req, &body); err != nil {
		h.writeError(w, req, err)
		return
	}
	if body.Splits != nil {
		series, err := loadSeries(ctx, sess)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		splits, err := period.ParseSplits(*body.Splits, series.Years)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		if err := h.storeSplits(ctx, sess, splits); err != nil {
			h.writeError(w, req, err)
			return
		}
		repeat = true
	}

	serveStage(h, w, req, session.StageTrend, repeat, allSucceeded[trend.Items],
		func(ctx context.Context, sess *session.Session) ([]assembler.Record[trend.Items], error) {
			r, err := h.request(ctx, sess)
			if err != nil {
				return nil, err
			}
			return h.controller.service.TrendDetection(ctx, r)
		})
}

// GetApproach returns the exploratory results for choosing an approach
func (h *Handlers) GetApproach(w http.ResponseWriter, req *http.Request) {
	h.writeApproach(w, req)
}

// PostApproach stores new split years without running trend detection. Stage
// results and per-period choices made for different split years are dropped.
func (h *Handlers) PostApproach(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)

	var body splitsRequest
	if err := decodeBody(req, &body); err != nil {
		h.writeError(w, req, err)
		return
	}
	if body.Splits == nil {
		h.writeError(w, req, fmt.Errorf("%w: splits are required", ffa.ErrInputShape))
		return
	}

	series, err := loadSeries(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	splits, err := period.ParseSplits(*body.Splits, series.Years)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	current, err := loadSplits(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if !slices.Equal(splits, current) {
		if err := h.storeSplits(ctx, sess, splits); err != nil {
			h.writeError(w, req, err)
			return
		}
	}

	h.writeApproach(w, req)
}

func (h *Handlers) writeApproach(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)

	series, err := loadSeries(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	resp := approachResponse{Series: series}
	if resp.Splits, err = loadSplits(ctx, sess); err != nil {
		h.writeError(w, req, err)
		return
	}

	var changePoints ffa.ChangePointResult
	found, err := sess.Cached(ctx, session.StageChangePoints, &changePoints)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if found {
		resp.ChangePoints = &changePoints
	}
	if _, err := sess.Cached(ctx, session.StageTrend, &resp.Trend); err != nil {
		h.writeError(w, req, err)
		return
	}

	h.formatter.WriteResponse(w, req, resp, nil)
}

// PostDistributionSelection recommends a distribution per period. Structures
// in the body replace the stored ones; without any, every period is
// stationary.
func (h *Handlers) PostDistributionSelection(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)
	repeat := repeatRequested(req)

	var body structuresRequest
	if err := decodeBody(req, &body); err != nil {
		h.writeError(w, req, err)
		return
	}
	if body.Structures != nil {
		if err := h.checkPeriodCount(ctx, sess, "structures", len(body.Structures)); err != nil {
			h.writeError(w, req, err)
			return
		}
		if err := sess.Enter(ctx, session.StageApproach, true); err != nil {
			h.writeError(w, req, err)
			return
		}
		if err := sess.Clear(ctx, session.FieldDistributions); err != nil {
			h.writeError(w, req, err)
			return
		}
		if err := sess.Write(ctx, map[string]any{session.FieldStructures: body.Structures}); err != nil {
			h.writeError(w, req, err)
			return
		}
		repeat = true
	}

	serveStage(h, w, req, session.StageDistribution, repeat, allSucceeded[ffa.SelectionResult],
		func(ctx context.Context, sess *session.Session) ([]assembler.Record[ffa.SelectionResult], error) {
			r, err := h.request(ctx, sess)
			if err != nil {
				return nil, err
			}
			if r.Structures, err = h.structures(ctx, sess, r); err != nil {
				return nil, err
			}
			return h.controller.service.DistributionSelection(ctx, r)
		})
}

// PostParameterEstimation fits a distribution per period. Distributions in
// the body replace the stored ones; without any, the recommendations of the
// distribution selection stage are used.
func (h *Handlers) PostParameterEstimation(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sess := sessionFrom(req)
	repeat := repeatRequested(req)

	var body distributionsRequest
	if err := decodeBody(req, &body); err != nil {
		h.writeError(w, req, err)
		return
	}
	if body.Distributions != nil {
		if err := h.checkDistributions(ctx, sess, body.Distributions); err != nil {
			h.writeError(w, req, err)
			return
		}
		if err := sess.Write(ctx, map[string]any{session.FieldDistributions: body.Distributions}); err != nil {
			h.writeError(w, req, err)
			return
		}
		repeat = true
	}

	serveStage(h, w, req, session.StageEstimation, repeat, allSucceeded[ffa.EstimationResult],
		func(ctx context.Context, sess *session.Session) ([]assembler.Record[ffa.EstimationResult], error) {
			r, err := h.approach(ctx, sess)
			if err != nil {
				return nil, err
			}
			return h.controller.service.ParameterEstimation(ctx, r)
		})
}

// PostUncertaintyQuantification computes return levels per period from the
// stored choices
func (h *Handlers) PostUncertaintyQuantification(w http.ResponseWriter, req *http.Request) {
	serveStage(h, w, req, session.StageUncertainty, repeatRequested(req), allSucceeded[ffa.UncertaintyResult],
		func(ctx context.Context, sess *session.Session) ([]assembler.Record[ffa.UncertaintyResult], error) {
			r, err := h.approach(ctx, sess)
			if err != nil {
				return nil, err
			}
			return h.controller.service.UncertaintyQuantification(ctx, r)
		})
}

// PostModelAssessment assesses the stored estimates, drawing the stored
// uncertainty results alongside when present
func (h *Handlers) PostModelAssessment(w http.ResponseWriter, req *http.Request) {
	serveStage(h, w, req, session.StageAssessment, repeatRequested(req), allSucceeded[ffa.AssessmentResult],
		func(ctx context.Context, sess *session.Session) ([]assembler.Record[ffa.AssessmentResult], error) {
			r, err := h.request(ctx, sess)
			if err != nil {
				return nil, err
			}

			var estimates []assembler.Record[ffa.EstimationResult]
			found, err := sess.Cached(ctx, session.StageEstimation, &estimates)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("%w: run parameter estimation first", errPrerequisite)
			}
			r.Estimations = results(estimates)

			var uncertainty []assembler.Record[ffa.UncertaintyResult]
			found, err = sess.Cached(ctx, session.StageUncertainty, &uncertainty)
			if err != nil {
				return nil, err
			}
			if found {
				r.Uncertainties = results(uncertainty)
			}

			return h.controller.service.ModelAssessment(ctx, r)
		})
}

// serveStage answers with the cached result of stage, or computes, stores
// and returns it. Entering the stage discards the results of later stages.
// A cached result that complete rejects is computed again; a nil complete
// accepts every result.
func serveStage[T any](h *Handlers, w http.ResponseWriter, req *http.Request, stage session.Stage, repeat bool, complete func(T) bool, compute func(context.Context, *session.Session) (T, error)) {
	ctx := req.Context()
	sess := sessionFrom(req)

	if err := sess.Enter(ctx, stage, repeat); err != nil {
		h.writeError(w, req, err)
		return
	}

	var cached T
	found, err := sess.Cached(ctx, stage, &cached)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if found && (complete == nil || complete(cached)) {
		h.formatter.WriteResponse(w, req, cached, map[string]string{"X-FFA-Cached": "true"})
		return
	}

	result, err := compute(ctx, sess)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if err := sess.Write(ctx, map[string]any{string(stage): result}); err != nil {
		h.writeError(w, req, err)
		return
	}

	h.controller.logger.Infow("stage computed", "uid", sess.UID(), "stage", stage, "complete", complete == nil || complete(result))
	h.formatter.WriteResponse(w, req, result, nil)
}

func (h *Handlers) options(ctx context.Context, sess *session.Session) (ffa.Options, error) {
	return sess.Options(ctx, h.controller.defaults)
}

func (h *Handlers) inputs(ctx context.Context, sess *session.Session) (ffa.Series, ffa.Options, error) {
	series, err := loadSeries(ctx, sess)
	if err != nil {
		return ffa.Series{}, ffa.Options{}, err
	}
	opts, err := h.options(ctx, sess)
	if err != nil {
		return ffa.Series{}, ffa.Options{}, err
	}
	return series, opts, nil
}

// request gathers the series, split years and options of the session
func (h *Handlers) request(ctx context.Context, sess *session.Session) (pipeline.Request, error) {
	series, opts, err := h.inputs(ctx, sess)
	if err != nil {
		return pipeline.Request{}, err
	}
	splits, err := loadSplits(ctx, sess)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{Series: series, Splits: splits, Options: opts}, nil
}

// approach is request plus the structure and distribution of every period
func (h *Handlers) approach(ctx context.Context, sess *session.Session) (pipeline.Request, error) {
	r, err := h.request(ctx, sess)
	if err != nil {
		return pipeline.Request{}, err
	}
	if r.Structures, err = h.structures(ctx, sess, r); err != nil {
		return pipeline.Request{}, err
	}
	if r.Distributions, err = h.distributions(ctx, sess); err != nil {
		return pipeline.Request{}, err
	}
	return r, nil
}

func (h *Handlers) structures(ctx context.Context, sess *session.Session, r pipeline.Request) ([]ffa.Structure, error) {
	var structures []ffa.Structure
	found, err := sess.Read(ctx, session.FieldStructures, &structures)
	if err != nil || found {
		return structures, err
	}

	periods, err := h.controller.service.Segments(r.Series, r.Splits)
	if err != nil {
		return nil, err
	}
	return make([]ffa.Structure, len(periods)), nil
}

func (h *Handlers) distributions(ctx context.Context, sess *session.Session) ([]string, error) {
	var distributions []string
	found, err := sess.Read(ctx, session.FieldDistributions, &distributions)
	if err != nil || found {
		return distributions, err
	}

	var selection []assembler.Record[ffa.SelectionResult]
	found, err = sess.Cached(ctx, session.StageDistribution, &selection)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: choose distributions or run distribution selection first", errPrerequisite)
	}

	distributions = make([]string, len(selection))
	for i, rec := range selection {
		if rec.Failed() || rec.Result.Recommended == "" {
			return nil, fmt.Errorf("%w: no distribution recommended for %d-%d", errPrerequisite, rec.Start, rec.End)
		}
		distributions[i] = rec.Result.Recommended
	}
	return distributions, nil
}

// checkPeriodCount rejects n per-period choices when the stored split years
// give a different number of periods
func (h *Handlers) checkPeriodCount(ctx context.Context, sess *session.Session, what string, n int) error {
	series, err := loadSeries(ctx, sess)
	if err != nil {
		return err
	}
	splits, err := loadSplits(ctx, sess)
	if err != nil {
		return err
	}
	periods, err := h.controller.service.Segments(series, splits)
	if err != nil {
		return err
	}
	if n != len(periods) {
		return fmt.Errorf("%w: %d %s for %d periods", ffa.ErrInputShape, n, what, len(periods))
	}
	return nil
}

func (h *Handlers) checkDistributions(ctx context.Context, sess *session.Session, distributions []string) error {
	for _, d := range distributions {
		if !ffa.ValidDistribution(d) {
			return fmt.Errorf("%w: unknown distribution %q", ffa.ErrInputShape, d)
		}
	}
	return h.checkPeriodCount(ctx, sess, "distributions", len(distributions))
}

// storeSplits replaces the split years and drops the per-period choices made
// for the old ones
func (h *Handlers) storeSplits(ctx context.Context, sess *session.Session, splits []int) error {
	if err := sess.Enter(ctx, session.StageTrend, true); err != nil {
		return err
	}
	if err := sess.Clear(ctx, session.FieldStructures, session.FieldDistributions); err != nil {
		return err
	}
	return sess.Write(ctx, map[string]any{session.FieldSplits: splits})
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := ffa.HTTPStatus(err)
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, errPrerequisite):
		status = http.StatusConflict
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	}

	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "status", status, "error", err)
	}
	h.formatter.WriteError(w, req, status, err)
}

func sessionFrom(req *http.Request) *session.Session {
	return req.Context().Value(sessionContextKey).(*session.Session)
}

func loadSeries(ctx context.Context, sess *session.Session) (ffa.Series, error) {
	var series ffa.Series
	found, err := sess.Read(ctx, session.FieldSeries, &series)
	if err != nil {
		return ffa.Series{}, err
	}
	if !found {
		return ffa.Series{}, errNoDataset
	}
	return series, nil
}

func loadSplits(ctx context.Context, sess *session.Session) ([]int, error) {
	splits := []int{}
	if _, err := sess.Read(ctx, session.FieldSplits, &splits); err != nil {
		return nil, err
	}
	return splits, nil
}

// allSucceeded reports whether no period of records failed
func allSucceeded[T any](records []assembler.Record[T]) bool {
	return assembler.Failures(records) == 0
}

// results extracts the per-period results, nil where a period failed
func results[T any](records []assembler.Record[T]) []*T {
	out := make([]*T, len(records))
	for i, r := range records {
		out[i] = r.Result
	}
	return out
}

// decodeBody decodes an optional JSON body into v
func decodeBody(req *http.Request, v any) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(req.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return fmt.Errorf("%w: malformed request body: %v", ffa.ErrInputShape, err)
}

func repeatRequested(req *http.Request) bool {
	switch req.URL.Query().Get("repeat") {
	case "", "0", "false":
		return false
	default:
		return true
	}
}
