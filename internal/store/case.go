package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Case interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Case, error)
	List(ctx context.Context, filter *CaseQueryFilter, opts *CaseQueryOptions) (model.CaseList, error)
	Count(ctx context.Context, filter *CaseQueryFilter) (int64, error)
	Create(ctx context.Context, c model.Case) (*model.Case, error)
	// Update writes the mutable columns of c when the stored version still equals
	// expectedVersion. On success c.Version is advanced by one.
	Update(ctx context.Context, c *model.Case, expectedVersion int) error
	// Claim is Update with the extra condition that nobody holds the case.
	Claim(ctx context.Context, c *model.Case, expectedVersion int) error
	AppendHistory(ctx context.Context, entries ...model.HistoryEntry) error
	UpsertDocumentVerification(ctx context.Context, dv model.DocumentVerification) error
	UpsertJobHistoryVerification(ctx context.Context, jv model.JobHistoryVerification) error
}

type CaseStore struct {
	db *gorm.DB
}

// Make sure we conform to Case interface
var _ Case = (*CaseStore)(nil)

func NewCaseStore(db *gorm.DB) Case {
	return &CaseStore{db: db}
}

func (s *CaseStore) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	var c model.Case
	result := s.getDB(ctx).
		Preload("DocumentVerifications", func(db *gorm.DB) *gorm.DB {
			return db.Order("job_entry_index, document_type, document_slot_index")
		}).
		Preload("JobHistoryVerifications", func(db *gorm.DB) *gorm.DB {
			return db.Order("job_entry_index")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence")
		}).
		First(&c, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &c, nil
}

func (s *CaseStore) List(ctx context.Context, filter *CaseQueryFilter, opts *CaseQueryOptions) (model.CaseList, error) {
	var cases model.CaseList
	tx := s.getDB(ctx).Model(&cases)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

func (s *CaseStore) Count(ctx context.Context, filter *CaseQueryFilter) (int64, error) {
	var count int64
	tx := s.getDB(ctx).Model(&model.Case{})

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *CaseStore) Create(ctx context.Context, c model.Case) (*model.Case, error) {
	if err := s.getDB(ctx).Omit(clause.Associations).Create(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &c, nil
}

func (s *CaseStore) Update(ctx context.Context, c *model.Case, expectedVersion int) error {
	return s.conditionalUpdate(ctx, c, expectedVersion, false)
}

func (s *CaseStore) Claim(ctx context.Context, c *model.Case, expectedVersion int) error {
	return s.conditionalUpdate(ctx, c, expectedVersion, true)
}

func (s *CaseStore) conditionalUpdate(ctx context.Context, c *model.Case, expectedVersion int, unassignedOnly bool) error {
	now := time.Now().UTC()

	tx := s.getDB(ctx).Model(&model.Case{}).
		Where("id = ? AND version = ?", c.ID, expectedVersion)
	if unassignedOnly {
		tx = tx.Where("assigned_to IS NULL")
	}

	result := tx.Updates(map[string]any{
		"status":             c.Status,
		"profile_status":     c.ProfileStatus,
		"job_history_status": c.JobHistoryStatus,
		"document_status":    c.DocumentStatus,
		"assigned_to":        c.AssignedTo,
		"assigned_at":        c.AssignedAt,
		"assigned_by":        c.AssignedBy,
		"priority":           c.Priority,
		"history_seq":        c.HistorySeq,
		"version":            expectedVersion + 1,
		"updated_at":         now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionMismatch
	}

	c.Version = expectedVersion + 1
	c.UpdatedAt = now
	return nil
}

func (s *CaseStore) AppendHistory(ctx context.Context, entries ...model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.getDB(ctx).Create(&entries).Error; err != nil {
		// a sequence clash means another writer appended first
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrVersionMismatch
		}
		return err
	}
	return nil
}

func (s *CaseStore) UpsertDocumentVerification(ctx context.Context, dv model.DocumentVerification) error {
	return s.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "case_id"},
			{Name: "document_type"},
			{Name: "job_entry_index"},
			{Name: "document_slot_index"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"document_ref", "status", "verified_by", "verified_at", "notes"}),
	}).Create(&dv).Error
}

func (s *CaseStore) UpsertJobHistoryVerification(ctx context.Context, jv model.JobHistoryVerification) error {
	return s.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "case_id"},
			{Name: "job_entry_index"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"job_entry_ref", "status", "verified_by", "verified_at", "notes"}),
	}).Create(&jv).Error
}

func (s *CaseStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
