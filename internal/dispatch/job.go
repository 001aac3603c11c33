package dispatch

import "context"

// Job is a unit of background work.
type Job interface {
	Execute(ctx context.Context) error
	Description() string
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Execute runs the wrapped function.
func (j JobFunc) Execute(ctx context.Context) error {
	if j.Fn == nil {
		return nil
	}
	return j.Fn(ctx)
}

// Description returns the job name.
func (j JobFunc) Description() string {
	if j.Name == "" {
		return "job"
	}
	return j.Name
}

// Admission reports how Dispatch accepted a job.
type Admission int

const (
	// AdmittedWorker means a new core worker was started for the job.
	AdmittedWorker Admission = iota
	// AdmittedQueue means the job was buffered for an existing worker.
	AdmittedQueue
	// AdmittedBurst means a temporary worker was started above the core size.
	AdmittedBurst
	// RanOnCaller means the pool was saturated or closed and the job ran
	// synchronously on the dispatching goroutine.
	RanOnCaller
)

func (a Admission) String() string {
	switch a {
	case AdmittedWorker:
		return "worker"
	case AdmittedQueue:
		return "queue"
	case AdmittedBurst:
		return "burst"
	case RanOnCaller:
		return "caller"
	default:
		return "unknown"
	}
}
