package quotes

import (
	"fmt"
	"strings"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Status enumerates quote lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusApproved  Status = "APPROVED"
	StatusConverted Status = "CONVERTED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// legacy spellings still present in stored rows and old clients.
var legacyStatus = map[string]Status{
	"OPEN":     StatusPending,
	"CANCELED": StatusCancelled,
}

// ParseStatus normalises a raw status, mapping legacy spellings.
func ParseStatus(raw string) (Status, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if s, ok := legacyStatus[v]; ok {
		return s, nil
	}
	switch s := Status(v); s {
	case StatusPending, StatusSent, StatusApproved, StatusConverted, StatusExpired, StatusCancelled:
		return s, nil
	}
	return "", shared.Validationf("unknown quote status %q", raw)
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusApproved, StatusCancelled, StatusExpired},
	StatusSent:      {StatusApproved, StatusCancelled, StatusExpired, StatusPending},
	StatusApproved:  {StatusConverted, StatusCancelled, StatusExpired},
	StatusExpired:   {StatusPending, StatusSent},
	StatusCancelled: {StatusPending},
}

// CanTransitionTo reports whether the lifecycle allows moving to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Editable reports whether items and header fields may change.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusSent
}

// Active reports whether the quote still awaits a decision.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusSent || s == StatusApproved
}

// ErrInvalidTransition is returned for moves the lifecycle forbids.
var ErrInvalidTransition = shared.RuleError("quote status transition not allowed")

// ErrNotEditable is returned when updating a quote past SENT.
var ErrNotEditable = shared.RuleError("quote is not editable")

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
