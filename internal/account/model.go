package account

import (
	"fmt"
	"time"
)

// Role selects one of the two disjoint account spaces.
type Role string

const (
	RoleCaregiver Role = "caregiver"
	RolePatient   Role = "patient"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCaregiver, RolePatient:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	return string(r)
}

// Account is immutable once registered.
type Account struct {
	Role      Role
	Username  string
	Salt      []byte
	Hash      []byte
	CreatedAt time.Time
}
