// Package sentinel holds the facts storage backends report about runs,
// artifacts and jobs. Stores return them, usually wrapped with the backend
// detail, and callers compare with errors.Is before mapping to a domain
// error code.
package sentinel

import "errors"

var (
	// ErrNotFound: no artifact, job or source object under the requested ID.
	ErrNotFound = errors.New("not found")
	// ErrConflict: an artifact already exists for the run ID. Artifacts are
	// written once.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the backing store cannot be reached right now.
	ErrUnavailable = errors.New("unavailable")
)
