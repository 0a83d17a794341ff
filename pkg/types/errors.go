package types

import "errors"

var (
	// ErrInvalidRole indicates a role string outside {student, teacher}.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidNamespace indicates a namespace that does not start with '/'.
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// ValidateRole checks a role string against the known roles.
func ValidateRole(role string) error {
	if role != RoleStudent && role != RoleTeacher {
		return ErrInvalidRole
	}
	return nil
}

// ValidateNamespace checks the minimal namespace grammar.
func ValidateNamespace(ns string) error {
	if ns == "" || ns[0] != '/' {
		return ErrInvalidNamespace
	}
	return nil
}
