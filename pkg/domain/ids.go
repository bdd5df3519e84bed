package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed IDs keep user, session, facility and organization identifiers from
// being mixed up at compile time. All are UUID-backed.
type (
	UserID         uuid.UUID
	SessionID      uuid.UUID
	FacilityID     uuid.UUID
	OrganizationID uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id FacilityID) String() string     { return uuid.UUID(id).String() }
func (id OrganizationID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id FacilityID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the canonical UUID string so IDs serialize as text
// in JSON payloads (queue messages, cached events) rather than byte arrays.
func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id SessionID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id FacilityID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id OrganizationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SessionID(u)
	return nil
}

func (id *FacilityID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = FacilityID(u)
	return nil
}

func (id *OrganizationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = OrganizationID(u)
	return nil
}

// ParseUserID parses and validates a user ID string. Empty and nil UUIDs
// are rejected so identifiers crossing a trust boundary are always real.
func ParseUserID(s string) (UserID, error) {
	u, err := parse(s)
	return UserID(u), err
}

// ParseSessionID parses and validates a session ID string.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parse(s)
	return SessionID(u), err
}

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("id must not be the nil UUID")
	}
	return u, nil
}
