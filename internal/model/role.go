package model

import (
	"encoding/json"
	"fmt"
)

// Role is one of the closed set of account roles, ordered by privilege.
type Role int

const (
	RoleUser Role = iota + 1
	RoleLister
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleLister:
		return "Lister"
	case RoleAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// IsAdmin reports whether r is exactly Admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// IsListerOrAdmin reports whether r is Lister or Admin.
func (r Role) IsListerOrAdmin() bool {
	return r == RoleLister || r == RoleAdmin
}

// ParseRole maps a stored role name to a Role.
func ParseRole(name string) (Role, error) {
	switch name {
	case "User":
		return RoleUser, nil
	case "Lister":
		return RoleLister, nil
	case "Admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, err := ParseRole(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
