package helpdesk

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store-level sentinel errors. Both the Redis client and the in-memory store
// return these (wrapped) so callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a request id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransitionConflict is returned when a conditional transition finds
	// the request in a status other than the expected one.
	ErrTransitionConflict = errors.New("transition conflict")
)

// Status is the lifecycle state of a help request.
type Status string

const (
	// StatusPending means the request is waiting for a supervisor answer.
	StatusPending Status = "pending"

	// StatusResolved means a supervisor answered the request. Terminal.
	StatusResolved Status = "resolved"

	// StatusUnresolved means the request timed out without an answer. Terminal.
	StatusUnresolved Status = "unresolved"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusResolved, StatusUnresolved}

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusResolved, StatusUnresolved:
		return nil
	default:
		return fmt.Errorf("unknown request status: %q", s)
	}
}

// IsTerminal reports whether no transition can leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusUnresolved
}

// HelpRequest is a question escalated to a human supervisor.
type HelpRequest struct {
	ID               string `json:"id"`                          // UUID assigned by the store
	Question         string `json:"question"`                    // Raw caller text, immutable
	CallerIdentity   string `json:"caller_identity"`             // Opaque caller handle (e.g. phone number)
	Status           Status `json:"status"`                      // pending, resolved, or unresolved
	CreatedAtMs      int64  `json:"created_at_ms"`               // Unix ms, set at creation
	ResolvedAtMs     int64  `json:"resolved_at_ms,omitempty"`    // Unix ms, 0 until a terminal transition
	SupervisorAnswer string `json:"supervisor_answer,omitempty"` // Empty until resolved
}

// CreatedAt returns the creation time.
func (r *HelpRequest) CreatedAt() time.Time {
	return time.UnixMilli(r.CreatedAtMs)
}

// ResolvedAt returns the terminal transition time and whether one happened.
func (r *HelpRequest) ResolvedAt() (time.Time, bool) {
	if r.ResolvedAtMs == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(r.ResolvedAtMs), true
}

// Validate checks if the HelpRequest has valid field values.
// The ID is checked only when set, since the store assigns it on creation.
func (r *HelpRequest) Validate() error {
	if r.ID != "" && !isValidUUID(r.ID) {
		return fmt.Errorf("invalid request ID: not a valid UUID")
	}

	if err := r.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if r.CreatedAtMs <= 0 {
		return fmt.Errorf("created_at_ms must be set")
	}

	if r.Status == StatusPending && (r.ResolvedAtMs != 0 || r.SupervisorAnswer != "") {
		return fmt.Errorf("pending request cannot carry resolution fields")
	}

	return nil
}

// KnowledgeEntry is a learned question/answer pair.
type KnowledgeEntry struct {
	ID                   string `json:"id"`                                // UUID assigned by the store
	Question             string `json:"question"`                          // Normalized question text
	Answer               string `json:"answer"`                            // Supervisor-approved answer
	LearnedFromRequestID string `json:"learned_from_request_id,omitempty"` // Weak back-reference, may be empty
	CreatedAtMs          int64  `json:"created_at_ms"`                     // Unix ms, set at insertion
}

// CreatedAt returns the insertion time.
func (e *KnowledgeEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.CreatedAtMs)
}

// Validate checks if the KnowledgeEntry has valid field values.
func (e *KnowledgeEntry) Validate() error {
	if e.ID != "" && !isValidUUID(e.ID) {
		return fmt.Errorf("invalid entry ID: not a valid UUID")
	}

	if e.Answer == "" {
		return fmt.Errorf("answer cannot be empty")
	}

	if e.LearnedFromRequestID != "" && !isValidUUID(e.LearnedFromRequestID) {
		return fmt.Errorf("invalid learned_from_request_id: not a valid UUID")
	}

	return nil
}

// TransitionFields carries the fields written alongside a status change.
type TransitionFields struct {
	ResolvedAtMs     int64
	SupervisorAnswer string
}

// IsNotFound returns true if err means the request does not exist.
// Accepts both ErrNotFound and redis.Nil.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, redis.Nil)
}

// IsConflict returns true if err is a lost compare-and-set on request status.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTransitionConflict)
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
