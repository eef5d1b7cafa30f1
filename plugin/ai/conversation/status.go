package conversation

import (
	"strings"

	apperrors "github.com/hrygo/orioncx/internal/errors"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusCompleted     Status = "COMPLETED"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusFailed        Status = "FAILED"
	StatusArchived      Status = "ARCHIVED"
	StatusDeleted       Status = "DELETED"
)

// AllStatuses lists every status in declaration order.
var AllStatuses = []Status{
	StatusActive,
	StatusCompleted,
	StatusPendingReview,
	StatusFailed,
	StatusArchived,
	StatusDeleted,
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range AllStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", apperrors.Validation("INVALID_STATUS", "unknown conversation status").
		WithDetail("received", s)
}

// TransitionPolicy decides whether a status change is allowed.
// It is never consulted for same-status updates.
type TransitionPolicy interface {
	Allow(from, to Status) bool
}

type unguarded struct{}

func (unguarded) Allow(_, _ Status) bool { return true }

// Unguarded allows every transition.
var Unguarded TransitionPolicy = unguarded{}

// TransitionTable is an allowed-edges map.
type TransitionTable map[Status][]Status

// Allow implements TransitionPolicy.
func (t TransitionTable) Allow(from, to Status) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StrictTransitions only allows moving through review or archival before
// deletion. DELETED is terminal.
var StrictTransitions = TransitionTable{
	StatusActive:        {StatusCompleted, StatusPendingReview, StatusFailed, StatusArchived},
	StatusPendingReview: {StatusActive, StatusCompleted, StatusFailed, StatusArchived},
	StatusCompleted:     {StatusArchived, StatusPendingReview},
	StatusFailed:        {StatusArchived, StatusPendingReview, StatusActive},
	StatusArchived:      {StatusDeleted, StatusActive},
	StatusDeleted:       {},
}
