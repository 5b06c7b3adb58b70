// Package results stores the final artifact of every run. Artifacts are
// immutable: a second write for the same run ID fails with
// sentinel.ErrConflict.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/sentinel"
)

// FSStore keeps one <run_id>.json file per run.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("result dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Save writes the artifact to a temp file and links it into place, so readers
// never see a partial file and an existing artifact is never replaced.
func (s *FSStore) Save(ctx context.Context, artifact *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(artifact.RunID)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+artifact.RunID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("artifact %s: %w", artifact.RunID, sentinel.ErrConflict)
		}
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, runID string) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a models.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", runID, err)
	}
	return &a, nil
}

func (s *FSStore) path(runID string) (string, error) {
	if err := checkRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, runID+".json"), nil
}

func checkRunID(runID string) error {
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.HasPrefix(runID, ".") {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}
