package results

import (
	"context"
	"fmt"
	"sync"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/sentinel"
)

// InMemoryStore is used by tests and the CLI.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]models.Artifact
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]models.Artifact)}
}

func (s *InMemoryStore) Save(_ context.Context, artifact *models.Artifact) error {
	if err := checkRunID(artifact.RunID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[artifact.RunID]; ok {
		return fmt.Errorf("artifact %s: %w", artifact.RunID, sentinel.ErrConflict)
	}
	s.artifacts[artifact.RunID] = *artifact
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, runID string) (*models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[runID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}
