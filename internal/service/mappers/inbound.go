package mappers

import (
	"time"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/store/model"
)

// CaseCreateForm is the intake request for a new case.
type CaseCreateForm struct {
	EmployeeID string
	CaseType   string
	Priority   string
}

// ToModel builds a fresh, unassigned case at version 1. The caller validates the form first.
func (f CaseCreateForm) ToModel(now time.Time) model.Case {
	priority := model.Priority(f.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}

	return model.Case{
		ID:               uuid.New(),
		CreatedAt:        now,
		UpdatedAt:        now,
		EmployeeID:       f.EmployeeID,
		CaseType:         model.CaseType(f.CaseType),
		Status:           model.CaseStatusPending,
		ProfileStatus:    model.ProfileStatusUpdated,
		JobHistoryStatus: model.VerificationPending,
		DocumentStatus:   model.VerificationPending,
		Priority:         priority,
		Version:          1,
	}
}

// ExpectedVersion of zero means "whatever version is current".
type StatusUpdateForm struct {
	Status          string
	Notes           string
	ExpectedVersion int
}

type DocumentVerificationForm struct {
	DocumentType      string
	JobEntryIndex     int
	DocumentSlotIndex int
	Status            string
	Notes             string
	ExpectedVersion   int
}

func (f DocumentVerificationForm) Key() model.DocumentKey {
	return model.DocumentKey{
		DocumentType:      f.DocumentType,
		JobEntryIndex:     f.JobEntryIndex,
		DocumentSlotIndex: f.DocumentSlotIndex,
	}
}

type JobHistoryVerificationForm struct {
	JobEntryIndex   int
	Status          string
	Notes           string
	ExpectedVersion int
}
