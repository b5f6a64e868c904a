package pipeline

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/receptro/constants"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrInputNotFound       = errors.New("input file not found")
	ErrStageFailure        = errors.New("pipeline stage failed")
)

// StageError reports which stage of a run failed. It matches ErrStageFailure
// and unwraps to the collaborator's error.
type StageError struct {
	Stage constants.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == ErrStageFailure }
