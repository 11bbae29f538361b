package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CaseType string

const (
	CaseTypeProfileUpdate        CaseType = "profile_update"
	CaseTypeJobHistory           CaseType = "job_history"
	CaseTypeDocumentVerification CaseType = "document_verification"
)

type CaseStatus string

const (
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusAssigned   CaseStatus = "assigned"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusCompleted  CaseStatus = "completed"
	CaseStatusRejected   CaseStatus = "rejected"
)

func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusRejected
}

type ProfileStatus string

const (
	ProfileStatusUpdated  ProfileStatus = "updated"
	ProfileStatusPending  ProfileStatus = "pending"
	ProfileStatusVerified ProfileStatus = "verified"
	ProfileStatusRejected ProfileStatus = "rejected"
)

// VerificationStatus is shared by the job history and document rollups and by
// every sub-record.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

func (s VerificationStatus) IsTerminal() bool {
	return s == VerificationVerified || s == VerificationRejected
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ProfileLevelJobEntry marks a document that is not scoped to a job history entry.
const ProfileLevelJobEntry = -1

type Case struct {
	ID               uuid.UUID          `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt        time.Time          `gorm:"not null;index:cases_created_at_idx"`
	UpdatedAt        time.Time          `gorm:"not null"`
	EmployeeID       string             `gorm:"not null;type:VARCHAR(255);index:cases_employee_id_idx"`
	CaseType         CaseType           `gorm:"not null;type:VARCHAR(50)"`
	Status           CaseStatus         `gorm:"not null;type:VARCHAR(50);index:cases_status_idx"`
	ProfileStatus    ProfileStatus      `gorm:"not null;type:VARCHAR(50)"`
	JobHistoryStatus VerificationStatus `gorm:"not null;type:VARCHAR(50)"`
	DocumentStatus   VerificationStatus `gorm:"not null;type:VARCHAR(50)"`
	AssignedTo       *string            `gorm:"type:VARCHAR(255);index:cases_assigned_to_idx"`
	AssignedAt       *time.Time
	AssignedBy       *string  `gorm:"type:VARCHAR(255)"`
	Priority         Priority `gorm:"not null;type:VARCHAR(50)"`
	// Version is compared and swapped by every mutation.
	Version    int `gorm:"not null"`
	HistorySeq int `gorm:"not null"`

	DocumentVerifications   []DocumentVerification   `gorm:"foreignKey:CaseID;references:ID;constraint:OnDelete:CASCADE;"`
	JobHistoryVerifications []JobHistoryVerification `gorm:"foreignKey:CaseID;references:ID;constraint:OnDelete:CASCADE;"`
	History                 []HistoryEntry           `gorm:"foreignKey:CaseID;references:ID;constraint:OnDelete:CASCADE;"`
}

func (c Case) IsAssignedTo(principalID string) bool {
	return c.AssignedTo != nil && *c.AssignedTo == principalID
}

func (c Case) String() string {
	val, _ := json.Marshal(c)
	return string(val)
}

type CaseList []Case

// DocumentKey is the composite identity of a document sub-record within a case.
type DocumentKey struct {
	DocumentType      string
	JobEntryIndex     int
	DocumentSlotIndex int
}

type DocumentVerification struct {
	ID                uint               `gorm:"primaryKey;autoIncrement"`
	CaseID            uuid.UUID          `gorm:"not null;type:VARCHAR(255);uniqueIndex:document_verifications_key"`
	DocumentType      string             `gorm:"not null;type:VARCHAR(100);uniqueIndex:document_verifications_key"`
	JobEntryIndex     int                `gorm:"not null;uniqueIndex:document_verifications_key"`
	DocumentSlotIndex int                `gorm:"not null;uniqueIndex:document_verifications_key"`
	DocumentRef       *string            `gorm:"type:VARCHAR(255)"`
	Status            VerificationStatus `gorm:"not null;type:VARCHAR(50)"`
	VerifiedBy        string             `gorm:"not null;type:VARCHAR(255)"`
	VerifiedAt        time.Time          `gorm:"not null"`
	Notes             string
}

func (d DocumentVerification) Key() DocumentKey {
	return DocumentKey{
		DocumentType:      d.DocumentType,
		JobEntryIndex:     d.JobEntryIndex,
		DocumentSlotIndex: d.DocumentSlotIndex,
	}
}

type JobHistoryVerification struct {
	ID            uint               `gorm:"primaryKey;autoIncrement"`
	CaseID        uuid.UUID          `gorm:"not null;type:VARCHAR(255);uniqueIndex:job_history_verifications_key"`
	JobEntryIndex int                `gorm:"not null;uniqueIndex:job_history_verifications_key"`
	JobEntryRef   *string            `gorm:"type:VARCHAR(255)"`
	Status        VerificationStatus `gorm:"not null;type:VARCHAR(50)"`
	VerifiedBy    string             `gorm:"not null;type:VARCHAR(255)"`
	VerifiedAt    time.Time          `gorm:"not null"`
	Notes         string
}

type HistoryAction string

const (
	ActionCaseCreated            HistoryAction = "case_created"
	ActionCaseAssigned           HistoryAction = "case_assigned"
	ActionStatusUpdated          HistoryAction = "status_updated"
	ActionProfileStatusUpdated   HistoryAction = "profile_status_updated"
	ActionDocumentVerification   HistoryAction = "document_verification_updated"
	ActionJobHistoryVerification HistoryAction = "job_history_verification_updated"
	ActionRollupsFinalized       HistoryAction = "rollups_finalized"
)

// HistoryEntry rows are insert-only.
type HistoryEntry struct {
	ID             uint          `gorm:"primaryKey;autoIncrement"`
	CaseID         uuid.UUID     `gorm:"not null;type:VARCHAR(255);uniqueIndex:case_history_sequence"`
	Sequence       int           `gorm:"not null;uniqueIndex:case_history_sequence"`
	Action         HistoryAction `gorm:"not null;type:VARCHAR(100)"`
	Description    string        `gorm:"not null"`
	PerformedBy    string        `gorm:"not null;type:VARCHAR(255)"`
	Timestamp      time.Time     `gorm:"not null"`
	PreviousStatus *string       `gorm:"type:VARCHAR(50)"`
	NewStatus      *string       `gorm:"type:VARCHAR(50)"`
}

func (HistoryEntry) TableName() string {
	return "case_history"
}
