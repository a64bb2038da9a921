// Package app wires inputs, the statistical engine and exporters into the
// end-to-end analysis flow.
package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"qcluster/adapters/stats/correction"
	"qcluster/adapters/stats/engine"
	"qcluster/domain/core"
	"qcluster/domain/study"
	apperrors "qcluster/internal/errors"
	"qcluster/ports"
)

// StudyService runs a complete analysis and fans the results out to the
// configured sinks and store.
type StudyService struct {
	source ports.StudySource
	sinks  []ports.ResultsSink
	store  ports.ResultsStore // optional
}

// NewStudyService creates a study service. store may be nil.
func NewStudyService(source ports.StudySource, store ports.ResultsStore, sinks ...ports.ResultsSink) *StudyService {
	return &StudyService{source: source, sinks: sinks, store: store}
}

// RunRequest carries one analysis invocation.
type RunRequest struct {
	Config study.Config
}

// Run loads the study, executes the permutation test, applies the configured
// correction, and exports the results. Configuration and integrity errors
// abort before or during computation; partial results are never exported.
func (s *StudyService) Run(ctx context.Context, req RunRequest) (*study.Results, error) {
	started := time.Now()

	loaded, err := s.source.LoadStudy(ctx)
	if err != nil {
		return nil, err
	}
	cfg := req.Config
	if err := cfg.Validate(len(loaded.Individuals)); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, err)
	}

	seed := resolveSeed(cfg)
	log.Printf("running study: %d individuals (%d cases), %d focus locations, k=%d, shuffles=%d, seed=%d",
		len(loaded.Individuals), loaded.NumCases(), len(loaded.Focuses), cfg.K, cfg.Shuffles, seed)

	eng, err := engine.New(loaded, cfg)
	if err != nil {
		if core.IsIntegrityError(err) {
			return nil, apperrors.WithCode(apperrors.CodeIntegrityViolation, err)
		}
		return nil, err
	}

	res, err := eng.Run(ctx, seed)
	if err != nil {
		return nil, err
	}
	res.Fingerprint = fingerprint(loaded, cfg, seed)

	correction.Apply(res)

	log.Printf("study %s finished in %s: Q=%g (p=%g), %d/%d significant dates, %d/%d significant cases",
		res.StudyID, time.Since(started).Round(time.Millisecond),
		res.Q.Value, res.Q.PValue,
		res.SignificantDateCount(), len(res.DateOrder),
		res.SignificantCaseCount(), len(res.CaseOrder))

	for _, sink := range s.sinks {
		if err := sink.WriteResults(ctx, res); err != nil {
			return nil, err
		}
	}
	if s.store != nil {
		if err := s.store.SaveResults(ctx, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// resolveSeed returns the caller-supplied seed or generates one; either way
// the value is echoed in the results so the run can be reproduced exactly.
func resolveSeed(cfg study.Config) int64 {
	if cfg.Seed != nil {
		return *cfg.Seed
	}
	return time.Now().UnixNano()
}

// fingerprint hashes the configuration, seed and input data so two runs can
// be compared for identical provenance.
func fingerprint(s *study.Study, cfg study.Config, seed int64) core.Hash {
	fields := []string{
		strconv.Itoa(cfg.K),
		strconv.Itoa(cfg.Shuffles),
		strconv.FormatFloat(cfg.Alpha, 'g', -1, 64),
		strconv.FormatBool(cfg.UseExposure),
		strconv.FormatBool(cfg.UseWeights),
		string(cfg.Correction),
		strconv.FormatInt(seed, 10),
	}
	for _, ind := range s.Individuals {
		fields = append(fields, fmt.Sprintf("%s:%v:%d", ind.ID, ind.Label.IsCase, len(ind.Intervals)))
		for _, iv := range ind.Intervals {
			fields = append(fields, fmt.Sprintf("%d-%d@%g,%g", iv.Start, iv.End, iv.Location.X, iv.Location.Y))
		}
	}
	for _, f := range s.Focuses {
		fields = append(fields, string(f.ID))
		for _, iv := range f.Intervals {
			fields = append(fields, fmt.Sprintf("%d-%d@%g,%g", iv.Start, iv.End, iv.Location.X, iv.Location.Y))
		}
	}
	return core.HashFields(fields...)
}
