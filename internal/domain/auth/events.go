package auth

import "time"

// EventType names an audit event raised by the authentication flows.
type EventType string

const (
	EventUserLoggedIn             EventType = "userLoggedIn"
	EventFailedLoginAttempt       EventType = "failedLoginAttempt"
	EventUserLockedOut            EventType = "userLockedOut"
	EventInactiveUserTriesToLogIn EventType = "inactiveUserTriesToLogIn"
	EventLockedUserTriesToLogIn   EventType = "lockedUserTriesToLogIn"
	EventUserPasswordChanged      EventType = "userPasswordChanged"
	EventUserUnlocked             EventType = "userUnlocked"
)

// Known reports whether t is one of the event types above.
func (t EventType) Known() bool {
	switch t {
	case EventUserLoggedIn, EventFailedLoginAttempt, EventUserLockedOut,
		EventInactiveUserTriesToLogIn, EventLockedUserTriesToLogIn,
		EventUserPasswordChanged, EventUserUnlocked:
		return true
	}
	return false
}

// Event carries the affected user. Metadata never holds secrets.
type Event struct {
	Type       EventType         `json:"type"`
	UserID     int64             `json:"user_id"`
	Email      string            `json:"email,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func NewEvent(t EventType, account *UserAccount, at time.Time) Event {
	ev := Event{Type: t, OccurredAt: at.UTC()}
	if account != nil {
		ev.UserID = account.ID
		ev.Email = account.Email
	}
	return ev
}

// AuditFilter narrows an audit log listing. Nil fields match everything.
type AuditFilter struct {
	UserID   *int64
	Type     *EventType
	Since    *time.Time
	Page     int
	PageSize int
}

const (
	DefaultAuditPageSize = 20
	MaxAuditPageSize     = 100
	MaxAuditPage         = 10000
)

// Normalize clamps paging to sane bounds.
func (f *AuditFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxAuditPage {
		f.Page = MaxAuditPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultAuditPageSize
	}
	if f.PageSize > MaxAuditPageSize {
		f.PageSize = MaxAuditPageSize
	}
}
