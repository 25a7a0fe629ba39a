package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning rejects a start while a matching process exists.
	ErrAlreadyRunning = errors.New("server already running")

	// ErrNotRunning rejects a stop when no matching process exists.
	ErrNotRunning = errors.New("server is not running")

	// ErrProcessNotObserved means the launcher ran but no matching
	// process appeared within the settle window.
	ErrProcessNotObserved = errors.New("server process did not appear after launch")
)

// MissingArtifactError names a launch prerequisite that does not exist.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("required launch file missing: %s", e.Path)
}
