package domain

import (
	"fmt"
	"strings"
)

// Role is fixed at registration and never changes.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleDonor
	RoleNGO
)

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "donor":
		return RoleDonor, nil
	case "ngo":
		return RoleNGO, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleDonor:
		return "donor"
	case RoleNGO:
		return "ngo"
	case RoleUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleNGO:
		return true
	case RoleUnknown:
		return false
	}
	return false
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Identity is what a verified bearer token proves about the caller.
type Identity struct {
	UserID string
	Role   Role
}
