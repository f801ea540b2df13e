package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

// StepState is one step's mutable state entry inside an ExecutionRecord
// (spec 4.5): status plus the bookkeeping fields needed to report progress
// without re-deriving them from a StepResult every time.
type StepState struct {
	Status    workflow.StepStatus
	Attempts  int
	StartedAt time.Time
	EndedAt   time.Time
	Error     *workflow.Error
	Output    interface{}
	UpdatedAt time.Time
}

// Duration returns the wall-clock time spent in this state, zero until the
// step has both started and ended.
func (s StepState) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// ExecutionRecord is the per-execution mutable record the state store holds
// (spec 4.5): the plan's step ids, every step's current state, aggregate
// counters, workflow-level timestamps/status, and the context snapshot the
// run was started with. It is owned exclusively by the WorkflowExecutor;
// every other reader goes through ExecutionStateStore's accessor methods.
type ExecutionRecord struct {
	ExecutionID string
	WorkflowID  string
	StepIDs     []string
	Steps       map[string]*StepState
	Context     map[string]interface{}

	Status    workflow.WorkflowStatus
	Error     *workflow.Error
	StartedAt time.Time
	EndedAt   time.Time

	Total     int
	Completed int
	Failed    int
	Skipped   int
}

// ExecutionStateStore is the C7 Execution State Store (spec 4.5): a
// mutex-guarded map of executionId to ExecutionRecord. The WorkflowExecutor
// is the only writer, matching spec 4.9's single-writer shared-resource
// policy: it records a phase's step results one at a time after the whole
// phase has settled, and the mutex guards the map against concurrent
// readers. Every other component reads a run's state through this store
// rather than the local variables inside Run, which vanish once that call
// returns.
type ExecutionStateStore struct {
	mu      sync.RWMutex
	records map[string]*ExecutionRecord
}

// NewExecutionStateStore returns an empty store.
func NewExecutionStateStore() *ExecutionStateStore {
	return &ExecutionStateStore{records: make(map[string]*ExecutionRecord)}
}

// Init creates executionId's record in WorkflowRunning with one pending
// StepState per stepID, snapshotting contextSnapshot for later readers.
func (s *ExecutionStateStore) Init(executionID, workflowID string, stepIDs []string, contextSnapshot map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make(map[string]*StepState, len(stepIDs))
	for _, id := range stepIDs {
		steps[id] = &StepState{Status: workflow.StepPending, UpdatedAt: time.Now()}
	}

	s.records[executionID] = &ExecutionRecord{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		StepIDs:     append([]string(nil), stepIDs...),
		Steps:       steps,
		Context:     contextSnapshot,
		Status:      workflow.WorkflowRunning,
		StartedAt:   time.Now(),
		Total:       len(stepIDs),
	}
}

// UpdateWorkflow sets executionId's terminal status and error and stamps
// EndedAt. A no-op if executionId was never Init'd.
func (s *ExecutionStateStore) UpdateWorkflow(executionID string, status workflow.WorkflowStatus, err *workflow.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[executionID]
	if !ok {
		return
	}
	rec.Status = status
	rec.Error = err
	rec.EndedAt = time.Now()
}

// UpdateStep applies a StepResult to executionId's record: it stamps
// StartedAt on the step's first RUNNING transition, EndedAt on its first
// terminal transition, and recomputes the record's aggregate counters.
// A no-op if executionId or stepId is unknown.
func (s *ExecutionStateStore) UpdateStep(executionID string, result workflow.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[executionID]
	if !ok {
		return
	}
	step, ok := rec.Steps[result.StepID]
	if !ok {
		return
	}

	if step.StartedAt.IsZero() && !result.StartedAt.IsZero() {
		step.StartedAt = result.StartedAt
	}
	if isTerminalStep(result.Status) && step.EndedAt.IsZero() {
		step.EndedAt = result.EndedAt
	}

	step.Status = result.Status
	step.Attempts = result.Attempts
	step.Error = result.Error
	step.Output = result.Output
	step.UpdatedAt = time.Now()

	rec.recount()
}

func isTerminalStep(status workflow.StepStatus) bool {
	switch status {
	case workflow.StepSucceeded, workflow.StepFailed, workflow.StepSkipped, workflow.StepCancelled, workflow.StepTimeout:
		return true
	default:
		return false
	}
}

func (rec *ExecutionRecord) recount() {
	rec.Completed, rec.Failed, rec.Skipped = 0, 0, 0
	for _, step := range rec.Steps {
		switch step.Status {
		case workflow.StepSucceeded:
			rec.Completed++
		case workflow.StepFailed, workflow.StepTimeout, workflow.StepCancelled:
			rec.Failed++
		case workflow.StepSkipped:
			rec.Skipped++
		}
	}
}

// Get returns a shallow copy of executionId's record and whether it exists.
// The returned Steps map is the same one backing the store; callers must
// not mutate it.
func (s *ExecutionStateStore) Get(executionID string) (ExecutionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[executionID]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// StepState returns a copy of one step's state within executionId.
func (s *ExecutionStateStore) StepState(executionID, stepID string) (StepState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[executionID]
	if !ok {
		return StepState{}, false
	}
	step, ok := rec.Steps[stepID]
	if !ok {
		return StepState{}, false
	}
	return *step, true
}

// IsStepTerminal reports whether stepId has reached a terminal status.
func (s *ExecutionStateStore) IsStepTerminal(executionID, stepID string) bool {
	state, ok := s.StepState(executionID, stepID)
	return ok && isTerminalStep(state.Status)
}

// IsStepSuccess reports whether stepId succeeded.
func (s *ExecutionStateStore) IsStepSuccess(executionID, stepID string) bool {
	state, ok := s.StepState(executionID, stepID)
	return ok && state.Status == workflow.StepSucceeded
}

// FailedSteps returns the sorted ids of every failed or timed-out step in
// executionId.
func (s *ExecutionStateStore) FailedSteps(executionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[executionID]
	if !ok {
		return nil
	}
	var ids []string
	for id, step := range rec.Steps {
		if step.Status == workflow.StepFailed || step.Status == workflow.StepTimeout {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CompletedSteps returns the sorted ids of every succeeded step in
// executionId.
func (s *ExecutionStateStore) CompletedSteps(executionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[executionID]
	if !ok {
		return nil
	}
	var ids []string
	for id, step := range rec.Steps {
		if step.Status == workflow.StepSucceeded {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ExecutionIDs enumerates every execution the store has recorded, sorted
// for deterministic iteration (spec 4.5's "enumeration of all
// executionIds").
func (s *ExecutionStateStore) ExecutionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
