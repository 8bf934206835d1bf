// SPDX-License-Identifier: Apache-2.0

// Package control implements the process-wide LoadStatus: a single
// owner guarding one logical writer per field, with atomic snapshot
// reads for the folder monitor and no-op scheduler.
package control

import "sync"

// Stage is one point in the load state machine's progression.
type Stage string

const (
	StageMigrationBuild Stage = "MigrationBuild"
	StageMigrationPre   Stage = "MigrationPre"
	StageManifestCheck  Stage = "ManifestCheck"
	StageMigrationIn    Stage = "MigrationIn"
	StageLoading        Stage = "Loading"
	StageCommitting     Stage = "Committing"
	StageCancelling     Stage = "Cancelling"
)

// Phase is the top-level process state.
type Phase string

const (
	PhaseIdle    Phase = "Idle"
	PhasePaused  Phase = "Paused"
	PhaseLoading Phase = "Loading"
)

// Status is an immutable snapshot of LoadStatus. Readers always see
// either an old or a new Status, never a partially updated one.
type Status struct {
	Phase  Phase
	Folder string // set when Phase == PhaseLoading
	Stage  Stage  // set when Phase == PhaseLoading
	Table  string // set when Stage == StageLoading
	Owner  string // set when Phase == PhasePaused
	Reason string // set when Stage == StageCancelling

	Messages int
	Loaded   int
	Attempt  int
}

// Surface is the single owner of LoadStatus. All mutators hold the
// same mutex, so there is exactly one logical writer per field at any
// instant; Get returns a copied snapshot so readers never observe a
// torn update.
type Surface struct {
	mu        sync.Mutex
	status    Status
	observers []chan Status
}

func New() *Surface {
	return &Surface{status: Status{Phase: PhaseIdle}}
}

// Signal registers an observer channel that receives a copy of Status
// after every mutation. The channel is buffered; a slow observer drops
// intermediate updates rather than blocking the writer.
func (s *Surface) Signal() <-chan Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Status, 1)
	s.observers = append(s.observers, ch)
	return ch
}

// notify must be called with mu held.
func (s *Surface) notify() {
	for _, ch := range s.observers {
		select {
		case ch <- s.status:
		default:
		}
	}
}

// Get returns the current snapshot.
func (s *Surface) Get() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsBusy reports whether discovery must pause: status is Loading or Paused.
func (s *Surface) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Phase == PhaseLoading || s.status.Phase == PhasePaused
}

// MakeBusy transitions to Loading{folder}, resetting per-load counters
// (Stage, Table, Attempt) to their initial values. Called by the
// dispatch loop before spawning the load task.
func (s *Surface) MakeBusy(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()
	s.status.Phase = PhaseLoading
	s.status.Folder = folder
	s.status.Stage = ""
	s.status.Table = ""
	s.status.Reason = ""
	s.status.Attempt = 0
}

// MakeIdle transitions back to Idle. Called by the dispatch loop after
// ack/alert.
func (s *Surface) MakeIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()
	s.status.Phase = PhaseIdle
	s.status.Folder = ""
	s.status.Stage = ""
	s.status.Table = ""
	s.status.Reason = ""
}

// MakePaused transitions to Paused{owner}, blocking discovery until a
// matching MakeIdle (used by the no-op scheduler's configured windows).
func (s *Surface) MakePaused(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()
	s.status.Phase = PhasePaused
	s.status.Owner = owner
}

// SetStage advances Stage. A no-op when Phase is not Loading: a stage
// transition arriving after the load has already been torn down must
// not resurrect a stale Loading status.
func (s *Surface) SetStage(stage Stage, table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Phase != PhaseLoading {
		return
	}
	defer s.notify()
	s.status.Stage = stage
	s.status.Table = table
}

// Cancel records a cancellation reason without leaving Loading: the
// load task is still running its rollback-to-safe-point sequence.
func (s *Surface) Cancel(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Phase != PhaseLoading {
		return
	}
	defer s.notify()
	s.status.Stage = StageCancelling
	s.status.Reason = reason
}

func (s *Surface) IncrementMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()
	s.status.Messages++
}

func (s *Surface) IncrementLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()
	s.status.Loaded++
}

func (s *Surface) IncrementAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()
	s.status.Attempt++
}
