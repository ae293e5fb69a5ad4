// Package dag implements the DAG Runner (C6): validating and executing a
// declared graph of shell steps with bounded parallel fan-out, honouring
// dependency edges, and cascading cancellation on first failure.
package dag

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/semaphore"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/process"
)

// Step is one node of the graph.
type Step struct {
	ID    string   `mapstructure:"id"`
	Run   string   `mapstructure:"run"`
	After []string `mapstructure:"after"`
}

// Outcome is a step's terminal disposition.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepResult is one step's transcript entry.
type StepResult struct {
	ID         string  `json:"id"`
	Outcome    Outcome `json:"outcome"`
	ExitStatus int     `json:"exit_status,omitempty"`
	Output     string  `json:"output,omitempty"`
}

// Result is the aggregate outcome of one DAG invocation.
type Result struct {
	Success     bool         `json:"success"`
	FailingStep string       `json:"failing_step,omitempty"`
	Steps       []StepResult `json:"steps"`
}

// DecodeSteps converts a loosely-typed step list (as decoded from JSON
// arguments, []interface{} of strings or maps) into typed Steps. A bare
// string is sugar for a step with an auto-assigned sequential id and no
// declared predecessors (implicit sequential chaining is applied by the
// caller, not here).
func DecodeSteps(raw []interface{}) ([]Step, error) {
	steps := make([]Step, 0, len(raw))
	for i, item := range raw {
		switch v := item.(type) {
		case string:
			steps = append(steps, Step{ID: fmt.Sprintf("step%d", i+1), Run: v})
		default:
			var s Step
			if err := mapstructure.Decode(item, &s); err != nil {
				return nil, coreerrors.Wrap(coreerrors.InvalidArguments, err, "invalid DAG step", fmt.Sprintf("index %d", i))
			}
			if s.ID == "" {
				s.ID = fmt.Sprintf("step%d", i+1)
			}
			steps = append(steps, s)
		}
	}
	return steps, nil
}

// Validate checks id uniqueness, that every step has a command, that
// every `after` reference resolves, and that the graph is acyclic. It
// returns nil for a valid graph and an InvalidArguments error otherwise;
// it does not compute an execution order.
func Validate(steps []Step) error {
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return coreerrors.New(coreerrors.InvalidArguments, "step id must not be empty", "")
		}
		if _, dup := byID[s.ID]; dup {
			return coreerrors.New(coreerrors.InvalidArguments, "duplicate step id", s.ID)
		}
		byID[s.ID] = s
	}
	for _, s := range steps {
		if s.Run == "" {
			return coreerrors.New(coreerrors.InvalidArguments, "empty command", s.ID)
		}
		for _, dep := range s.After {
			if _, ok := byID[dep]; !ok {
				return coreerrors.New(coreerrors.InvalidArguments, "unresolved after reference", dep)
			}
		}
	}

	// Cycle detection via DFS colouring.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return coreerrors.New(coreerrors.InvalidArguments, "cycle detected in DAG", id)
		}
		color[id] = gray
		for _, dep := range byID[id].After {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for _, s := range steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}

// Runner executes a validated DAG via the Process Supervisor.
type Runner struct {
	sv          *process.Supervisor
	maxParallel int
}

// New creates a Runner. maxParallel <= 0 defaults to the host's CPU count.
func New(sv *process.Supervisor, maxParallel int) *Runner {
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}
	return &Runner{sv: sv, maxParallel: maxParallel}
}

// Run executes steps, honouring dependency edges and fanning out ready
// steps up to maxParallel concurrently. On first failure it cancels
// outstanding running steps and marks not-yet-started steps skipped.
func (r *Runner) Run(ctx context.Context, cwd string, env []string, steps []Step) (*Result, error) {
	if err := Validate(steps); err != nil {
		return nil, err
	}

	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	var (
		mu       sync.Mutex
		results  = make(map[string]StepResult, len(steps))
		done     = make(map[string]chan struct{}, len(steps))
		failed   bool
		failedID string
	)
	for _, s := range steps {
		done[s.ID] = make(chan struct{})
	}

	sem := semaphore.NewWeighted(int64(r.maxParallel))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range steps {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done[s.ID])

			for _, dep := range s.After {
				select {
				case <-done[dep]:
				case <-runCtx.Done():
					recordSkipped(&mu, results, s.ID)
					return
				}
			}

			mu.Lock()
			skip := failed
			mu.Unlock()
			if skip {
				recordSkipped(&mu, results, s.ID)
				return
			}

			if err := sem.Acquire(runCtx, 1); err != nil {
				recordSkipped(&mu, results, s.ID)
				return
			}
			defer sem.Release(1)

			res, err := r.sv.Spawn(runCtx, process.SpawnRequest{
				Argv: []string{"/bin/sh", "-c", s.Run},
				Cwd:  cwd,
				Env:  env,
			})
			if err != nil {
				mu.Lock()
				results[s.ID] = StepResult{ID: s.ID, Outcome: OutcomeFailed, Output: err.Error()}
				failed = true
				failedID = s.ID
				mu.Unlock()
				cancel()
				return
			}

			if res.Backgrounded {
				res.Session.Wait(runCtx)
				code, _ := res.Session.ExitStatus()
				res.ExitStatus = code
				out, _, _ := r.sv.Logs(res.Session.ID, 0)
				res.CapturedStdout = out
			}

			outcome := OutcomeSuccess
			if res.ExitStatus != 0 {
				outcome = OutcomeFailed
			}

			mu.Lock()
			results[s.ID] = StepResult{ID: s.ID, Outcome: outcome, ExitStatus: res.ExitStatus, Output: string(res.CapturedStdout) + string(res.CapturedStderr)}
			if outcome == OutcomeFailed {
				failed = true
				failedID = s.ID
				cancel()
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	transcript := make([]StepResult, 0, len(steps))
	for _, s := range steps {
		transcript = append(transcript, results[s.ID])
	}
	sort.Slice(transcript, func(i, j int) bool { return transcript[i].ID < transcript[j].ID })

	return &Result{Success: !failed, FailingStep: failedID, Steps: transcript}, nil
}

func recordSkipped(mu *sync.Mutex, results map[string]StepResult, id string) {
	mu.Lock()
	if _, already := results[id]; !already {
		results[id] = StepResult{ID: id, Outcome: OutcomeSkipped}
	}
	mu.Unlock()
}
