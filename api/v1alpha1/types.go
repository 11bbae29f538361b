package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

// Case is a verification case as returned by the API. Version doubles as the ETag.
type Case struct {
	Id                      uuid.UUID                `json:"id"`
	EmployeeId              string                   `json:"employeeId"`
	CaseType                string                   `json:"caseType"`
	Status                  string                   `json:"status"`
	ProfileStatus           string                   `json:"profileStatus"`
	JobHistoryStatus        string                   `json:"jobHistoryStatus"`
	DocumentStatus          string                   `json:"documentStatus"`
	Priority                string                   `json:"priority"`
	AssignedTo              *string                  `json:"assignedTo,omitempty"`
	AssignedBy              *string                  `json:"assignedBy,omitempty"`
	AssignedAt              *time.Time               `json:"assignedAt,omitempty"`
	Version                 int                      `json:"version"`
	CreatedAt               time.Time                `json:"createdAt"`
	UpdatedAt               time.Time                `json:"updatedAt"`
	DocumentVerifications   []DocumentVerification   `json:"documentVerifications"`
	JobHistoryVerifications []JobHistoryVerification `json:"jobHistoryVerifications"`
	History                 []HistoryEntry           `json:"history"`
}

type CaseSummary struct {
	Id         uuid.UUID `json:"id"`
	EmployeeId string    `json:"employeeId"`
	CaseType   string    `json:"caseType"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	AssignedTo *string   `json:"assignedTo,omitempty"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CaseList struct {
	Cases    []CaseSummary `json:"cases"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`

	// NextCursor continues the listing with ?after=; absent on the last page.
	NextCursor *string `json:"nextCursor,omitempty"`
}

type DocumentVerification struct {
	DocumentType      string    `json:"documentType"`
	JobEntryIndex     int       `json:"jobEntryIndex"`
	DocumentSlotIndex int       `json:"documentSlotIndex"`
	DocumentRef       *string   `json:"documentRef,omitempty"`
	Status            string    `json:"status"`
	VerifiedBy        string    `json:"verifiedBy"`
	VerifiedAt        time.Time `json:"verifiedAt"`
	Notes             string    `json:"notes,omitempty"`
}

type JobHistoryVerification struct {
	JobEntryIndex int       `json:"jobEntryIndex"`
	JobEntryRef   *string   `json:"jobEntryRef,omitempty"`
	Status        string    `json:"status"`
	VerifiedBy    string    `json:"verifiedBy"`
	VerifiedAt    time.Time `json:"verifiedAt"`
	Notes         string    `json:"notes,omitempty"`
}

type HistoryEntry struct {
	Sequence       int       `json:"sequence"`
	Action         string    `json:"action"`
	Description    string    `json:"description"`
	PerformedBy    string    `json:"performedBy"`
	Timestamp      time.Time `json:"timestamp"`
	PreviousStatus *string   `json:"previousStatus,omitempty"`
	NewStatus      *string   `json:"newStatus,omitempty"`
}

type CaseCreate struct {
	EmployeeId string  `json:"employeeId" validate:"required,principal_id"`
	CaseType   string  `json:"caseType" validate:"required,case_type"`
	Priority   *string `json:"priority,omitempty" validate:"omitempty,priority"`
}

type StatusUpdate struct {
	Status          string  `json:"status" validate:"required"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ExpectedVersion *int    `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

type DocumentVerificationUpdate struct {
	DocumentType      string  `json:"documentType" validate:"required,max=100"`
	JobEntryIndex     int     `json:"jobEntryIndex" validate:"min=-1"`
	DocumentSlotIndex int     `json:"documentSlotIndex" validate:"min=0"`
	Status            string  `json:"status" validate:"required"`
	Notes             *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ExpectedVersion   *int    `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

type JobHistoryVerificationUpdate struct {
	JobEntryIndex   int     `json:"jobEntryIndex" validate:"min=0"`
	Status          string  `json:"status" validate:"required"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ExpectedVersion *int    `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

type CaseAssignment struct {
	VerifierId      string `json:"verifierId" validate:"required,principal_id"`
	ExpectedVersion *int   `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

// VersionedRequest is the optional body of claim, auto-assign and finalize.
type VersionedRequest struct {
	ExpectedVersion *int `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}

type Health struct {
	Status string `json:"status"`
}
