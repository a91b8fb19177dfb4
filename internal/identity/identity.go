// Package identity carries the authenticated caller through a request context.
// Authentication itself happens upstream; this package only trusts what the
// gateway forwards.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Role is the coarse permission level of a caller.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

// ErrMissingIdentity is returned when no caller identity is available.
var ErrMissingIdentity = errors.New("missing caller identity")

// Identity is the current caller.
type Identity struct {
	UserID int64
	Role   Role
}

// IsManager reports whether the caller holds the manager role.
func (i Identity) IsManager() bool {
	return i.Role == RoleManager
}

// ParseRole converts header input into a Role. Empty input defaults to RoleUser.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleManager:
		return RoleManager, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// Parse builds an Identity from raw user id and role values.
func Parse(userID, role string) (Identity, error) {
	if strings.TrimSpace(userID) == "" {
		return Identity{}, ErrMissingIdentity
	}
	id, err := strconv.ParseInt(strings.TrimSpace(userID), 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, fmt.Errorf("invalid user id %q", userID)
	}
	r, err := ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: id, Role: r}, nil
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller stored in ctx.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok {
		return Identity{}, ErrMissingIdentity
	}
	return id, nil
}
