package workflow

import "time"

// Transition records one state change plus when it happened, forming the
// append-only audit trail spec section 4.6 requires for both step and
// workflow lifecycles.
type Transition struct {
	To   string
	At   time.Time
	Note string
}

// stepTransitions is the legal-transition table for StepStatus. A status not
// present as a key, or a target not present in its value set, is illegal.
var stepTransitions = map[StepStatus]map[StepStatus]bool{
	StepPending:   {StepRunning: true, StepSkipped: true, StepCancelled: true},
	StepRunning:   {StepSucceeded: true, StepFailed: true, StepRetrying: true, StepCancelled: true, StepTimeout: true},
	StepRetrying:  {StepRunning: true, StepFailed: true, StepCancelled: true, StepTimeout: true},
	StepSucceeded: {},
	StepFailed:    {},
	StepSkipped:   {},
	StepCancelled: {},
	StepTimeout:   {},
}

// workflowTransitions is the legal-transition table for WorkflowStatus.
var workflowTransitions = map[WorkflowStatus]map[WorkflowStatus]bool{
	WorkflowPending:   {WorkflowRunning: true, WorkflowCancelled: true},
	WorkflowRunning:   {WorkflowSucceeded: true, WorkflowFailed: true, WorkflowPartial: true, WorkflowCancelled: true, WorkflowTimeout: true},
	WorkflowSucceeded: {},
	WorkflowFailed:    {},
	WorkflowPartial:   {},
	WorkflowCancelled: {},
	WorkflowTimeout:   {},
}

// StepMachine tracks one step's lifecycle and its transition history.
type StepMachine struct {
	current StepStatus
	history []Transition
}

// NewStepMachine returns a machine starting in StepPending.
func NewStepMachine() *StepMachine {
	return &StepMachine{current: StepPending}
}

// Current returns the machine's present status.
func (m *StepMachine) Current() StepStatus {
	return m.current
}

// History returns the recorded transitions in order.
func (m *StepMachine) History() []Transition {
	return m.history
}

// Transition attempts to move the machine to target, recording the change on
// success. It reports an *Error of kind KindExecutionIllegalState on an
// illegal move rather than panicking, since an illegal transition is an
// engine invariant violation, not a caller mistake to be recovered from.
func (m *StepMachine) Transition(target StepStatus, note string) error {
	allowed, ok := stepTransitions[m.current]
	if !ok || !allowed[target] {
		return New(KindExecutionIllegalState, "illegal step state transition").
			WithContext(map[string]interface{}{"from": string(m.current), "to": string(target)})
	}
	m.history = append(m.history, Transition{To: string(target), At: time.Now(), Note: note})
	m.current = target
	return nil
}

// WorkflowMachine tracks a workflow run's lifecycle and its transition
// history.
type WorkflowMachine struct {
	current WorkflowStatus
	history []Transition
}

// NewWorkflowMachine returns a machine starting in WorkflowPending.
func NewWorkflowMachine() *WorkflowMachine {
	return &WorkflowMachine{current: WorkflowPending}
}

// Current returns the machine's present status.
func (m *WorkflowMachine) Current() WorkflowStatus {
	return m.current
}

// History returns the recorded transitions in order.
func (m *WorkflowMachine) History() []Transition {
	return m.history
}

// Transition attempts to move the machine to target, recording the change on
// success.
func (m *WorkflowMachine) Transition(target WorkflowStatus, note string) error {
	allowed, ok := workflowTransitions[m.current]
	if !ok || !allowed[target] {
		return New(KindExecutionIllegalState, "illegal workflow state transition").
			WithContext(map[string]interface{}{"from": string(m.current), "to": string(target)})
	}
	m.history = append(m.history, Transition{To: string(target), At: time.Now(), Note: note})
	m.current = target
	return nil
}

// IsTerminal reports whether status has no legal outgoing transitions.
func IsTerminal(s WorkflowStatus) bool {
	return len(workflowTransitions[s]) == 0
}
