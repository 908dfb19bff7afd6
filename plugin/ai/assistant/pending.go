// Package assistant turns chat turns into reminder operations. It holds the
// per-user pending-action state machine, the tool dispatch layer, and the
// tool-calling agent loop.
package assistant

import "sync"

// PendingKind tags the variant of a pending action.
type PendingKind string

const (
	// PendingConfirmTime awaits a yes/no or a time for a reminder whose
	// creation lacked an explicit time.
	PendingConfirmTime PendingKind = "confirm_time"
	// PendingClarifyReminder awaits an ordinal choice between candidate
	// reminders.
	PendingClarifyReminder PendingKind = "clarify_reminder"
	// PendingUpdateDue awaits a replacement date after a parse failure.
	PendingUpdateDue PendingKind = "update_due"
)

// PendingAction is the transient conversation state for one user. Exactly
// one may exist per user; storing a new one replaces the old.
type PendingAction struct {
	Kind PendingKind

	// confirm_time payload
	Title         string
	Description   string
	DueText       string
	Category      string
	SuggestedTime string

	// clarify_reminder payload
	Matches  []int64
	Question string

	// update_due payload
	ReminderID int64
}

// PendingStore holds at most one pending action per user. All operations
// are atomic so the single-slot invariant holds under concurrent turns.
type PendingStore struct {
	mu      sync.Mutex
	actions map[string]*PendingAction
}

// NewPendingStore creates an empty pending store.
func NewPendingStore() *PendingStore {
	return &PendingStore{actions: make(map[string]*PendingAction)}
}

// Get returns the user's pending action without consuming it.
func (s *PendingStore) Get(userID string) *PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions[userID]
}

// Put stores a pending action, replacing any existing one.
func (s *PendingStore) Put(userID string, action *PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[userID] = action
}

// Take removes and returns the user's pending action, or nil.
func (s *PendingStore) Take(userID string) *PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := s.actions[userID]
	delete(s.actions, userID)
	return action
}

// Clear removes the user's pending action if present.
func (s *PendingStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actions, userID)
}

// Len returns the number of users with a pending action.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}
