package scheduler

import (
	"context"
	"fmt"
	"strings"
)

// Task is a recurring background job. Implementations are expected to be
// safe against overlapping invocations, or to rely on the document
// repository's compare-and-swap semantics to make concurrent writes safe.
type Task interface {
	// Schedule returns the task's five-field cron expression.
	Schedule() string

	// Execute runs the task once. It must honor ctx cancellation
	// cooperatively; the scheduler never forcibly terminates a task.
	Execute(ctx context.Context) error
}

// taskName derives a stable label for logs and metrics from the task's
// concrete type.
func taskName(t Task) string {
	return strings.TrimLeft(fmt.Sprintf("%T", t), "*")
}
