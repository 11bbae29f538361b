package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrCaseNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "case")
}

func NewErrVerifierNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "verifier")
}

func NewErrEmployeeNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "employee")
}

func NewErrNoVerifierAvailable() *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("no verifier available")}
}

type ErrForbidden struct {
	error
}

func NewErrForbidden(principalID string, operation string) *ErrForbidden {
	return &ErrForbidden{fmt.Errorf("principal %s is not allowed to %s", principalID, operation)}
}

type ErrInvalidTransition struct {
	error
}

func NewErrInvalidTransition(from, to string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("transition from %s to %s is not allowed", from, to)}
}

func NewErrCaseClosed(id uuid.UUID, status string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("case %s is %s and accepts no changes", id, status)}
}

func NewErrRollupsNotReady(reason string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("rollups cannot be finalized: %s", reason)}
}

type ErrInvalidStatus struct {
	error
}

func NewErrInvalidStatus(value string) *ErrInvalidStatus {
	return &ErrInvalidStatus{fmt.Errorf("invalid status %q", value)}
}

// ErrConflict means the case changed since the caller read it. The caller
// should re-read before retrying.
type ErrConflict struct {
	error
	stale bool
}

func NewErrConflict(id uuid.UUID) *ErrConflict {
	return &ErrConflict{error: fmt.Errorf("case %s was modified concurrently", id), stale: true}
}

func NewErrAlreadyAssigned(id uuid.UUID) *ErrConflict {
	return &ErrConflict{error: fmt.Errorf("case %s is already assigned", id)}
}

// Stale reports whether the conflict is a version mismatch rather than a
// case that is held by somebody else.
func (e *ErrConflict) Stale() bool {
	return e.stale
}

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

type ErrInvalidVerifier struct {
	error
}

func NewErrInvalidVerifier(id string, reason string) *ErrInvalidVerifier {
	return &ErrInvalidVerifier{fmt.Errorf("principal %s cannot verify cases: %s", id, reason)}
}
