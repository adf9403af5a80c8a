package logger

import (
	"sync"
	"time"
)

// StepTracker logs the numbered steps of a pipeline run with their timing.
type StepTracker struct {
	logger    Logger
	operation string
	startTime time.Time
	steps     []StepStats
	current   *StepStats
	mutex     sync.Mutex
}

// StepStats records the outcome of one step
type StepStats struct {
	Number   int           `json:"number"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Status   string        `json:"status"`
	Fields   Fields        `json:"fields,omitempty"`
}

// Step status values
const (
	StepRunning   = "running"
	StepSucceeded = "success"
	StepFailed    = "error"
)

// NewStepTracker creates a tracker for the given operation
func NewStepTracker(operation string, logger Logger) *StepTracker {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	t := &StepTracker{
		logger:    logger.WithComponent("steps"),
		operation: operation,
		startTime: time.Now(),
	}

	t.logger.WithField("operation", operation).Info("Starting operation")
	return t
}

// Start begins a new step, completing any step still running
func (t *StepTracker) Start(name string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.current != nil && t.current.Status == StepRunning {
		t.finish(StepSucceeded, nil, nil)
	}

	t.steps = append(t.steps, StepStats{
		Number: len(t.steps) + 1,
		Name:   name,
		Status: StepRunning,
	})
	t.current = &t.steps[len(t.steps)-1]
	t.current.Duration = time.Since(t.startTime)

	t.logger.WithFields(Fields{
		"operation": t.operation,
		"step":      t.current.Number,
		"name":      name,
	}).Info("Step started")
}

// Done completes the running step successfully with optional result fields
func (t *StepTracker) Done(fields Fields) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.finish(StepSucceeded, nil, fields)
}

// Fail completes the running step with an error
func (t *StepTracker) Fail(err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.finish(StepFailed, err, nil)
}

// Warn logs a warning attached to the running step
func (t *StepTracker) Warn(message string, fields Fields) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	all := Fields{"operation": t.operation}
	if t.current != nil {
		all["step"] = t.current.Number
	}
	for k, v := range fields {
		all[k] = v
	}
	t.logger.WithFields(all).Warn(message)
}

// Complete logs the overall duration of the operation
func (t *StepTracker) Complete() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.current != nil && t.current.Status == StepRunning {
		t.finish(StepSucceeded, nil, nil)
	}

	t.logger.WithFields(Fields{
		"operation": t.operation,
		"steps":     len(t.steps),
		"duration":  time.Since(t.startTime).String(),
	}).Info("Operation completed")
}

// Steps returns a copy of the recorded steps
func (t *StepTracker) Steps() []StepStats {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	out := make([]StepStats, len(t.steps))
	copy(out, t.steps)
	return out
}

// finish must be called with the mutex held
func (t *StepTracker) finish(status string, err error, fields Fields) {
	if t.current == nil || t.current.Status != StepRunning {
		return
	}

	// Duration holds the start offset while the step runs
	t.current.Duration = time.Since(t.startTime) - t.current.Duration
	t.current.Status = status
	t.current.Fields = fields

	all := Fields{
		"operation": t.operation,
		"step":      t.current.Number,
		"name":      t.current.Name,
		"duration":  t.current.Duration.String(),
		"status":    status,
	}
	for k, v := range fields {
		all[k] = v
	}

	if err != nil {
		t.logger.WithError(err).WithFields(all).Error("Step failed")
	} else {
		t.logger.WithFields(all).Info("Step completed")
	}
	t.current = nil
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	start := time.Now()
	err := fn()

	fields := Fields{
		"operation": operation,
		"duration":  time.Since(start).String(),
	}
	if err != nil {
		fields["status"] = StepFailed
		logger.WithError(err).WithFields(fields).Error("Operation failed")
	} else {
		fields["status"] = StepSucceeded
		logger.WithFields(fields).Debug("Operation completed")
	}

	return err
}
