package store

import (
	"context"
	"time"

	"github.com/verifyhub/case-engine/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminPrincipalID is the principal seeded on an empty database.
const AdminPrincipalID = "admin"

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Case() Case
	Principal() Principal
	Employee() Employee
	InitialMigration(ctx context.Context) error
	Seed(ctx context.Context) error
	Statistics(ctx context.Context) (model.CaseStats, error)
	Close() error
}

type DataStore struct {
	db        *gorm.DB
	cases     Case
	principal Principal
	employee  Employee
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:        db,
		cases:     NewCaseStore(db),
		principal: NewPrincipalStore(db),
		employee:  NewEmployeeStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Case() Case {
	return s.cases
}

func (s *DataStore) Principal() Principal {
	return s.principal
}

func (s *DataStore) Employee() Employee {
	return s.employee
}

// InitialMigration creates the schema from the models. Production postgres
// databases are migrated with goose instead.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&model.Principal{},
		&model.Case{},
		&model.DocumentVerification{},
		&model.JobHistoryVerification{},
		&model.HistoryEntry{},
		&model.JobEntry{},
		&model.Document{},
	)
}

func (s *DataStore) Statistics(ctx context.Context) (model.CaseStats, error) {
	stats := model.CaseStats{
		TotalByStatus:  map[string]int64{},
		OpenByVerifier: map[string]int64{},
	}

	var byStatus []struct {
		Status string
		Total  int64
	}
	if err := s.db.WithContext(ctx).Model(&model.Case{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return stats, err
	}
	for _, row := range byStatus {
		stats.TotalByStatus[row.Status] = row.Total
	}

	var byVerifier []struct {
		AssignedTo string
		Total      int64
	}
	if err := s.db.WithContext(ctx).Model(&model.Case{}).
		Select("assigned_to, COUNT(*) AS total").
		Where("assigned_to IS NOT NULL AND status IN ?", openStatuses()).
		Group("assigned_to").
		Scan(&byVerifier).Error; err != nil {
		return stats, err
	}
	for _, row := range byVerifier {
		stats.OpenByVerifier[row.AssignedTo] = row.Total
	}

	return stats, nil
}

func (s *DataStore) Seed(ctx context.Context) error {
	tx, err := newTransaction(s.db.WithContext(ctx))
	if err != nil {
		return err
	}

	admin := model.Principal{
		ID:        AdminPrincipalID,
		CreatedAt: time.Now().UTC(),
		Role:      model.RoleAdmin,
		Name:      "Administrator",
		Active:    true,
	}

	if err := tx.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&admin).Error; err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// openStatuses are the statuses that count towards a verifier's workload.
func openStatuses() []string {
	return []string{string(model.CaseStatusAssigned), string(model.CaseStatusInProgress)}
}
