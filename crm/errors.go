/*
errors.go - Centralized error types for the sales engine

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Packages wrap these with additional context via fmt.Errorf("%w").

ERROR CATEGORIES:
  1. Validation errors - Invalid input, resolved locally where a safe zero
     value exists (missing target or tier rule never errors, it pays zero)
  2. Store errors - Persistence failures, propagated to the caller
  3. Consistency errors - Post-condition violations (delete reported
     successful but record survives, client/server assignment divergence);
     these are surfaced loudly, never silently retried

USAGE:
    if errors.Is(err, crm.ErrMonthClosed) {
        // 409 to the client
    }

SEE ALSO:
  - store.go: Interfaces returning these errors
  - closure/: ErrMonthClosed / ErrMonthNotClosed producers
  - scheduling/: ConsistencyError producer (assignment divergence)
*/
package crm

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrActorNotFound is returned when a referenced actor doesn't exist.
	ErrActorNotFound = errors.New("actor not found")

	// ErrLevelNotFound is returned when a referenced level doesn't exist.
	ErrLevelNotFound = errors.New("level not found")

	// ErrAchievementNotFound is returned when a referenced record doesn't exist.
	ErrAchievementNotFound = errors.New("achievement not found")

	// ErrMeetingNotFound is returned when a referenced meeting doesn't exist.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrMonthClosed is returned when mutating configuration of a closed month.
	ErrMonthClosed = errors.New("month is closed")

	// ErrMonthNotClosed is returned when reopening a month that isn't closed.
	ErrMonthNotClosed = errors.New("month is not closed")

	// ErrRoleForbidden is returned when the caller's role can't perform the action.
	ErrRoleForbidden = errors.New("role not allowed")

	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidKind is returned for an unknown actor kind.
	ErrInvalidKind = errors.New("invalid actor kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError details a rejected achievement status change.
type TransitionError struct {
	AchievementID string
	From          AchievementStatus
	To            AchievementStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("achievement %s: cannot transition %s -> %s", e.AchievementID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ConsistencyError reports a failed post-condition check. These indicate a
// real data-integrity bug and must be surfaced to an operator, not retried.
type ConsistencyError struct {
	Operation string // e.g. "cascade_delete", "assignment_divergence"
	EntityID  string
	Detail    string
	At        time.Time
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation in %s for %s: %s", e.Operation, e.EntityID, e.Detail)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActorNotFound) ||
		errors.Is(err, ErrLevelNotFound) ||
		errors.Is(err, ErrAchievementNotFound) ||
		errors.Is(err, ErrMeetingNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrRoleForbidden)
}

// IsConflict returns true if the error should map to HTTP 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrMonthClosed) || errors.Is(err, ErrMonthNotClosed)
}
