package models

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusReceived  Status = "RECEIVED"
	StatusValidated Status = "VALIDATED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// TransitionTableVersion identifies the transition table below. Bump it whenever
// a state or an edge is added so every stage can log which table it enforces.
const TransitionTableVersion = 1

var (
	ErrUnknownStatus     = errors.New("unknown transaction status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// transitions maps a stored status to the statuses it may advance to.
var transitions = map[Status][]Status{
	StatusReceived:  {StatusValidated, StatusRejected},
	StatusValidated: {StatusCompleted, StatusFailed},
	StatusRejected:  nil,
	StatusCompleted: nil,
	StatusFailed:    nil,
}

// ParseStatus validates and converts a raw string status.
func ParseStatus(raw string) (Status, error) {
	status := Status(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return status, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether a write of next over a stored s is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanReach reports whether target lies ahead of s through one or more
// transitions. A status never reaches itself.
func (s Status) CanReach(target Status) bool {
	for _, next := range transitions[s] {
		if next == target || next.CanReach(target) {
			return true
		}
	}
	return false
}

// Predecessors returns every status that may be overwritten by target, in table order.
func Predecessors(target Status) []Status {
	var out []Status
	for _, from := range []Status{StatusReceived, StatusValidated, StatusRejected, StatusCompleted, StatusFailed} {
		if from.CanTransitionTo(target) {
			out = append(out, from)
		}
	}
	return out
}

// ValidateTransition validates a status transition using the transition table.
func ValidateTransition(from, to Status) error {
	if !from.IsValid() {
		return fmt.Errorf("from status: %w: %q", ErrUnknownStatus, from)
	}
	if !to.IsValid() {
		return fmt.Errorf("to status: %w: %q", ErrUnknownStatus, to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s Status) String() string {
	return string(s)
}
