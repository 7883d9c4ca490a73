package deploy

import (
	"fmt"
	"strings"

	"github.com/cuemby/burrow/pkg/types"
)

// StageError reports remote tasks that finished in the error state. The
// pipeline stops at the stage that produced it; earlier stages stay applied.
type StageError struct {
	Stage  Stage
	Failed []types.TaskResult
}

func (e *StageError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		msg := r.Error
		if msg == "" {
			msg = string(r.State)
		}
		parts = append(parts, fmt.Sprintf("%s on %s: %s", r.Task.Operation, r.Task.Target, msg))
	}
	return fmt.Sprintf("stage %s failed: %d task(s) failed: %s", e.Stage, len(e.Failed), strings.Join(parts, "; "))
}
