// Package orchestrator runs named analysis jobs against external backends
// under explicit timeout, retry, and bounded-concurrency policies, and
// composes their results.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curvesy/argus/internal/events"
	"github.com/curvesy/argus/internal/schema"
)

// Publisher receives lifecycle events. Satisfied by *events.Distributor.
type Publisher interface {
	Publish(e events.Event)
}

// Orchestrator coordinates analysis jobs across the configured backends.
type Orchestrator struct {
	backends map[schema.Kind]Backend
	policies map[schema.Kind]Policy
	pub      Publisher
	sem      *Semaphore
}

// New creates an Orchestrator. maxConcurrent bounds simultaneous backend
// calls across RunAll invocations; values <= 0 fall back to 3.
func New(backends map[schema.Kind]Backend, policies map[schema.Kind]Policy, pub Publisher, maxConcurrent int) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Orchestrator{
		backends: backends,
		policies: policies,
		pub:      pub,
		sem:      NewSemaphore(maxConcurrent),
	}
}

// Submit runs one analysis job to its terminal state under the kind's
// policy. It returns the terminal task; the error is non-nil only for a
// terminal failure (*TerminalError). A kind with no configured backend
// fails with ErrUnknownKind as the cause.
func (o *Orchestrator) Submit(ctx context.Context, kind schema.Kind, req Request) (*Task, error) {
	task := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		SubjectID: req.SubjectID,
		Status:    StatusPending,
	}
	return o.run(ctx, task.ID, task, req)
}

// run executes the retry loop for task, publishing progress under runID.
func (o *Orchestrator) run(ctx context.Context, runID string, task *Task, req Request) (*Task, error) {
	backend, ok := o.backends[task.Kind]
	if !ok {
		// No backend for this kind: the task still reaches a terminal
		// state so composite summaries stay consistent.
		task.transition(StatusRunning)
		o.emitProgress(runID, task)
		task.Error = ErrUnknownKind.Error()
		return o.finish(runID, task, StatusFailed, ErrUnknownKind)
	}
	policy := o.policies[task.Kind]

	task.transition(StatusRunning)
	task.StartedAt = time.Now()
	o.emitProgress(runID, task)

	var lastErr error
	maxAttempts := policy.maxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		task.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		raw, err := backend.Analyze(attemptCtx, req)
		cancel()

		if err == nil {
			payload, verr := schema.Validate(task.Kind, raw)
			if verr != nil {
				// Malformed payload: fail immediately, no retry.
				lastErr = verr
				break
			}
			task.Result = payload
			return o.finish(runID, task, StatusSucceeded, nil)
		}

		lastErr = err
		if ctx.Err() != nil {
			// Parent cancelled; stop without burning the remaining budget.
			break
		}
		if !isTimeout(err) && !IsTransient(err) {
			break
		}
		if attempt < maxAttempts {
			slog.Debug("Retrying analysis",
				"kind", task.Kind, "attempt", attempt, "delay", policy.RetryDelay, "error", err)
			select {
			case <-time.After(policy.RetryDelay):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	terminal := StatusFailed
	if isTimeout(lastErr) {
		terminal = StatusTimedOut
	}
	task.Error = lastErr.Error()
	_, err := o.finish(runID, task, terminal, lastErr)
	return task, err
}

// finish moves task to its terminal status and publishes the outcome.
func (o *Orchestrator) finish(runID string, task *Task, terminal Status, cause error) (*Task, error) {
	task.transition(terminal)
	task.CompletedAt = time.Now()
	o.emitProgress(runID, task)

	if cause == nil {
		slog.Info("Analysis succeeded",
			"kind", task.Kind, "subject", task.SubjectID, "attempts", task.Attempts)
		return task, nil
	}
	slog.Warn("Analysis terminal failure",
		"kind", task.Kind, "subject", task.SubjectID, "status", task.Status,
		"attempts", task.Attempts, "error", cause)
	return task, &TerminalError{Kind: task.Kind, Attempts: task.Attempts, Last: cause}
}

// RunAll executes one task per kind concurrently under the shared
// concurrency ceiling. It never fails fast: every task runs to its own
// terminal state and the composite reports partial success.
func (o *Orchestrator) RunAll(ctx context.Context, subjectID string, kinds []schema.Kind) *CompositeResult {
	runID := uuid.NewString()

	kindNames := make([]string, len(kinds))
	for i, k := range kinds {
		kindNames[i] = string(k)
	}
	o.publish(events.Event{
		Type:    events.TypeRunStarted,
		RunID:   runID,
		Payload: events.RunStartedPayload{SubjectID: subjectID, Kinds: kindNames},
	})

	tasks := make([]*Task, len(kinds))
	var wg sync.WaitGroup
	for i, kind := range kinds {
		task := &Task{
			ID:        uuid.NewString(),
			Kind:      kind,
			SubjectID: subjectID,
			Status:    StatusPending,
		}
		tasks[i] = task

		wg.Add(1)
		go func(task *Task) {
			defer wg.Done()
			if err := o.sem.Acquire(ctx); err != nil {
				task.transition(StatusRunning)
				o.emitProgress(runID, task)
				task.Error = err.Error()
				_, _ = o.finish(runID, task, StatusFailed, err)
				return
			}
			defer o.sem.Release()
			// Terminal errors are already reflected on the task.
			_, _ = o.run(ctx, runID, task, Request{SubjectID: subjectID})
		}(task)
	}
	wg.Wait()

	result := &CompositeResult{
		RunID:      runID,
		SubjectID:  subjectID,
		Tasks:      tasks,
		Confidence: compositeConfidence(tasks),
	}

	var succeeded, failed int
	for _, t := range tasks {
		if t.Status == StatusSucceeded {
			succeeded++
		} else {
			failed++
		}
	}
	o.publish(events.Event{
		Type:  events.TypeRunEnded,
		RunID: runID,
		Payload: events.RunEndedPayload{
			SubjectID:  subjectID,
			Succeeded:  succeeded,
			Failed:     failed,
			Confidence: result.Confidence,
		},
	})
	return result
}

// healthProbeTimeout bounds each HealthCheck probe.
const healthProbeTimeout = 10 * time.Second

// HealthCheck probes every configured backend independently. A probe
// failure is recorded as false for that kind; the call never errors.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[schema.Kind]bool {
	report := make(map[schema.Kind]bool, len(o.backends))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for kind, backend := range o.backends {
		wg.Add(1)
		go func(kind schema.Kind, backend Backend) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
			defer cancel()
			err := backend.Ping(probeCtx)
			if err != nil {
				slog.Warn("Backend probe failed", "kind", kind, "error", err)
			}
			mu.Lock()
			report[kind] = err == nil
			mu.Unlock()
		}(kind, backend)
	}
	wg.Wait()
	return report
}

func (o *Orchestrator) emitProgress(runID string, task *Task) {
	o.publish(events.Event{
		Type:  events.TypeExecutionUpdate,
		RunID: runID,
		Payload: events.ExecutionUpdatePayload{
			TaskID:   task.ID,
			Kind:     string(task.Kind),
			Status:   string(task.Status),
			Attempts: task.Attempts,
			Error:    task.Error,
		},
	})
}

func (o *Orchestrator) publish(e events.Event) {
	if o.pub != nil {
		o.pub.Publish(e)
	}
}
