// Package ports defines the interfaces the verification pipeline depends on.
// Adapters in internal/collaborators, internal/storage and internal/events
// implement them.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"

	"docverify/internal/verification/models"
)

// ErrMalformedResponse marks a collaborator reply that arrived but could not
// be interpreted. Adapters wrap it so the pipeline can tell it apart from a
// failed call.
var ErrMalformedResponse = errors.New("malformed collaborator response")

// Recognizer turns a document into text.
type Recognizer interface {
	Recognize(ctx context.Context, src models.Source) (*models.OCRResult, error)
}

// Classifier returns the raw document-type labels found in the text.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]string, error)
}

// Extractor reads the holder's name and the issue date from the text.
type Extractor interface {
	Extract(ctx context.Context, text, docType string) (*models.ExtractedFields, error)
}

// SourceStore persists uploaded files and returns a reference to them.
type SourceStore interface {
	Save(ctx context.Context, runID string, src models.Source) (string, error)
}

// ResultStore persists final artifacts.
type ResultStore interface {
	Save(ctx context.Context, artifact *models.Artifact) error
	Get(ctx context.Context, runID string) (*models.Artifact, error)
}

// EventPublisher announces completed runs.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, ev models.RunCompleted) error
}
