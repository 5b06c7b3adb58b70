// Package source persists uploaded documents so a run's artifact can point
// back at the exact bytes it verified.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docverify/internal/verification/models"
)

// FSStore writes uploads under root/<run_id>/<filename>.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("source root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create source root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Save(ctx context.Context, runID string, src models.Source) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := runDir(s.root, runID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	path := filepath.Join(dir, SanitizeFilename(src.Filename))
	if err := os.WriteFile(path, src.Data, 0o640); err != nil {
		return "", fmt.Errorf("write source: %w", err)
	}
	return path, nil
}

func runDir(root, runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(root, runID), nil
}

// SanitizeFilename keeps the base name of an uploaded file and replaces
// anything outside [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}
