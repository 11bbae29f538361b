package model

import (
	"time"

	"github.com/google/uuid"
)

// JobEntry and Document rows are referenced by position from open cases.
// Positions never move: entries are retired, not deleted.

type JobEntry struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	EmployeeID string    `gorm:"not null;type:VARCHAR(255);uniqueIndex:job_entries_position"`
	Position   int       `gorm:"not null;uniqueIndex:job_entries_position"`
	Company    string    `gorm:"not null"`
	Title      string
	StartDate  *time.Time
	EndDate    *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	RetiredAt  *time.Time
}

type Document struct {
	ID            uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	EmployeeID    string    `gorm:"not null;type:VARCHAR(255);uniqueIndex:documents_slot"`
	DocumentType  string    `gorm:"not null;type:VARCHAR(100);uniqueIndex:documents_slot"`
	JobEntryIndex int       `gorm:"not null;uniqueIndex:documents_slot"`
	SlotIndex     int       `gorm:"not null;uniqueIndex:documents_slot"`
	FileName      string
	CreatedAt     time.Time `gorm:"not null"`
	RetiredAt     *time.Time
}
