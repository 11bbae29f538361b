package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/store/model"
	"gorm.io/gorm"
)

// Employee holds the job history and documents cases point into. Rows are
// appended and retired, never deleted or renumbered.
type Employee interface {
	GetJobHistory(ctx context.Context, employeeID string) ([]model.JobEntry, error)
	GetDocuments(ctx context.Context, employeeID string) ([]model.Document, error)
	// AddJobEntry stores e at the next free position of the employee's history.
	AddJobEntry(ctx context.Context, e model.JobEntry) (*model.JobEntry, error)
	AddDocument(ctx context.Context, d model.Document) (*model.Document, error)
	RetireJobEntry(ctx context.Context, id uuid.UUID) error
	RetireDocument(ctx context.Context, id uuid.UUID) error
}

type EmployeeStore struct {
	db *gorm.DB
}

var _ Employee = (*EmployeeStore)(nil)

func NewEmployeeStore(db *gorm.DB) Employee {
	return &EmployeeStore{db: db}
}

func (s *EmployeeStore) GetJobHistory(ctx context.Context, employeeID string) ([]model.JobEntry, error) {
	var entries []model.JobEntry
	if err := s.getDB(ctx).Where("employee_id = ?", employeeID).Order("position").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *EmployeeStore) GetDocuments(ctx context.Context, employeeID string) ([]model.Document, error) {
	var docs []model.Document
	if err := s.getDB(ctx).
		Where("employee_id = ?", employeeID).
		Order("job_entry_index, document_type, slot_index").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *EmployeeStore) AddJobEntry(ctx context.Context, e model.JobEntry) (*model.JobEntry, error) {
	var next int64
	if err := s.getDB(ctx).Model(&model.JobEntry{}).Where("employee_id = ?", e.EmployeeID).Count(&next).Error; err != nil {
		return nil, err
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Position = int(next)
	e.CreatedAt = time.Now().UTC()

	if err := s.getDB(ctx).Create(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &e, nil
}

func (s *EmployeeStore) AddDocument(ctx context.Context, d model.Document) (*model.Document, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()

	if err := s.getDB(ctx).Create(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &d, nil
}

func (s *EmployeeStore) RetireJobEntry(ctx context.Context, id uuid.UUID) error {
	return s.retire(ctx, &model.JobEntry{}, id)
}

func (s *EmployeeStore) RetireDocument(ctx context.Context, id uuid.UUID) error {
	return s.retire(ctx, &model.Document{}, id)
}

func (s *EmployeeStore) retire(ctx context.Context, m any, id uuid.UUID) error {
	result := s.getDB(ctx).Model(m).
		Where("id = ? AND retired_at IS NULL", id).
		Update("retired_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *EmployeeStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
