// Package ports declares the interfaces between the core analysis and its
// adapters.
package ports

import (
	"context"

	"qcluster/domain/core"
	"qcluster/domain/study"
)

// StudySource loads a validated study from some backing format.
type StudySource interface {
	LoadStudy(ctx context.Context) (*study.Study, error)
}

// ResultsSink receives a completed run for export.
type ResultsSink interface {
	WriteResults(ctx context.Context, res *study.Results) error
}

// ResultsStore persists completed runs for later retrieval.
type ResultsStore interface {
	SaveResults(ctx context.Context, res *study.Results) error
	GetResults(ctx context.Context, id core.StudyID) (*study.Results, error)
	ListStudies(ctx context.Context) ([]core.StudyID, error)
}
