package models

import (
	"errors"
	"time"
)

type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusExpired    SessionStatus = "expired"
	StatusFailed     SessionStatus = "failed"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrAlreadyExists     = errors.New("session already exists")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// allowedTransitions is the whole state machine. Nothing leaves a terminal status.
var allowedTransitions = map[SessionStatus][]SessionStatus{
	StatusPending:    {StatusProcessing, StatusExpired, StatusFailed},
	StatusProcessing: {StatusCompleted},
}

// IsTerminal reports whether no further transition is defined out of s.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusFailed
}

func CanTransition(from, to SessionStatus) bool {
	if from.IsTerminal() {
		return false
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentSession is one purchase attempt. ID is minted locally at checkout,
// ExternalID is the gateway's checkout session id; both resolve to this record.
type PaymentSession struct {
	ID            string        `json:"id"`
	ExternalID    string        `json:"externalId"`
	Status        SessionStatus `json:"status"`
	Outcome       *bool         `json:"outcome,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	UserID        string        `json:"userId,omitempty"`
}

// Clone returns a deep copy so callers never share the stored pointers.
func (s *PaymentSession) Clone() *PaymentSession {
	c := *s
	if s.Outcome != nil {
		o := *s.Outcome
		c.Outcome = &o
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

type SessionMetadata struct {
	CustomerEmail string
	UserID        string
	CreatedAt     time.Time
}

// StatusView is what a polling client sees.
type StatusView struct {
	Status      SessionStatus `json:"status"`
	Outcome     *bool         `json:"outcome,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

func (s *PaymentSession) View() *StatusView {
	c := s.Clone()
	return &StatusView{
		Status:      c.Status,
		Outcome:     c.Outcome,
		CompletedAt: c.CompletedAt,
	}
}
