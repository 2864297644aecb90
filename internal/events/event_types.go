package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers. The value doubles as the
// AMQP routing key.
type EventType string

const (
	EventUserRegistered  EventType = "user.registered"
	EventUserLoggedIn    EventType = "user.logged_in"
	EventUserLoginFailed EventType = "user.login_failed"
	EventUserLoggedOut   EventType = "user.logged_out"
)

// AllTypes lists every event the service emits.
func AllTypes() []EventType {
	return []EventType{EventUserRegistered, EventUserLoggedIn, EventUserLoginFailed, EventUserLoggedOut}
}

// Login failure reasons.
const (
	ReasonUnknownEmail  = "unknown_email"
	ReasonWrongPassword = "wrong_password"
)

// Event is an auth audit record. It never carries passwords or tokens.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(t EventType) Event {
	return Event{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC()}
}
