// Package session keeps the per-user analysis state: the options, the dataset,
// the analyst's choices and the cached result of every stage.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned by Store.Get when the field is not set
var ErrNotFound = errors.New("session field not found")

// Store persists raw field values per session id
type Store interface {
	Get(ctx context.Context, uid, field string) ([]byte, error)
	Put(ctx context.Context, uid string, fields map[string][]byte) error
	Delete(ctx context.Context, uid string, fields ...string) error
	// Purge drops every session whose newest field was written before the
	// cutoff and returns how many fields were removed. A session expires
	// whole; its fields never expire one by one.
	Purge(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Stage is one step of the analysis workflow
type Stage string

const (
	StageDataset      Stage = "dataset_selection"
	StageChangePoints Stage = "change_point_detection"
	StageTrend        Stage = "trend_detection"
	StageApproach     Stage = "approach_selection"
	StageDistribution Stage = "distribution_selection"
	StageEstimation   Stage = "parameter_estimation"
	StageUncertainty  Stage = "uncertainty_quantification"
	StageAssessment   Stage = "model_assessment"
	StageReport       Stage = "report_generation"
)

// Stages lists the workflow in order. Running a stage discards the cached
// results of every stage after it.
var Stages = []Stage{
	StageDataset,
	StageChangePoints,
	StageTrend,
	StageApproach,
	StageDistribution,
	StageEstimation,
	StageUncertainty,
	StageAssessment,
	StageReport,
}

// Fields holding inputs rather than stage results
const (
	FieldOptions       = "options"
	FieldSeries        = "series"
	FieldSplits        = "splits"
	FieldStructures    = "structures"
	FieldDistributions = "distributions"
)

// Session is a typed view of one user's fields in a Store
type Session struct {
	store Store
	uid   string
}

// Open returns the session for uid
func Open(store Store, uid string) *Session {
	return &Session{store: store, uid: uid}
}

// UID returns the session id
func (s *Session) UID() string {
	return s.uid
}

// Read decodes field into v. It returns false when the field is not set.
func (s *Session) Read(ctx context.Context, field string, v any) (bool, error) {
	raw, err := s.store.Get(ctx, s.uid, field)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", field, err)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", field, err)
	}
	return true, nil
}

// Write encodes and stores every value in one call
func (s *Session) Write(ctx context.Context, values map[string]any) error {
	fields := make(map[string][]byte, len(values))
	for field, v := range values {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding %s: %w", field, err)
		}
		fields[field] = buf.Bytes()
	}
	return s.store.Put(ctx, s.uid, fields)
}

// Clear removes fields from the session
func (s *Session) Clear(ctx context.Context, fields ...string) error {
	return s.store.Delete(ctx, s.uid, fields...)
}

// Enter prepares the session for running stage. Cached results of later
// stages are discarded, and so is the stage's own result when repeat is set.
func (s *Session) Enter(ctx context.Context, stage Stage, repeat bool) error {
	pos := slices.Index(Stages, stage)
	if pos < 0 {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if !repeat {
		pos++
	}

	stale := make([]string, 0, len(Stages)-pos)
	for _, st := range Stages[pos:] {
		stale = append(stale, string(st))
	}
	if len(stale) == 0 {
		return nil
	}
	return s.store.Delete(ctx, s.uid, stale...)
}

// Cached decodes the stored result of stage into v
func (s *Session) Cached(ctx context.Context, stage Stage, v any) (bool, error) {
	return s.Read(ctx, string(stage), v)
}

// Options returns the session's options, storing the defaults on first use
func (s *Session) Options(ctx context.Context, defaults ffa.Options) (ffa.Options, error) {
	var opts ffa.Options
	found, err := s.Read(ctx, FieldOptions, &opts)
	if err != nil {
		return ffa.Options{}, err
	}
	if found {
		return opts, nil
	}

	if err := s.Write(ctx, map[string]any{FieldOptions: defaults}); err != nil {
		return ffa.Options{}, err
	}
	return defaults, nil
}
