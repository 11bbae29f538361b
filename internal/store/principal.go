package store

import (
	"context"
	"errors"

	"github.com/verifyhub/case-engine/internal/store/model"
	"gorm.io/gorm"
)

// Principal is the directory of actors and employees.
type Principal interface {
	Get(ctx context.Context, id string) (*model.Principal, error)
	Create(ctx context.Context, p model.Principal) (*model.Principal, error)
	// ListVerifierWorkloads returns every active verifier with the number of open
	// cases it holds, ordered by verifier id.
	ListVerifierWorkloads(ctx context.Context) ([]model.VerifierWorkload, error)
}

type PrincipalStore struct {
	db *gorm.DB
}

var _ Principal = (*PrincipalStore)(nil)

func NewPrincipalStore(db *gorm.DB) Principal {
	return &PrincipalStore{db: db}
}

func (s *PrincipalStore) Get(ctx context.Context, id string) (*model.Principal, error) {
	var p model.Principal
	if err := s.getDB(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PrincipalStore) Create(ctx context.Context, p model.Principal) (*model.Principal, error) {
	if err := s.getDB(ctx).Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &p, nil
}

func (s *PrincipalStore) ListVerifierWorkloads(ctx context.Context) ([]model.VerifierWorkload, error) {
	var workloads []model.VerifierWorkload
	err := s.getDB(ctx).
		Table("principals AS p").
		Select("p.id AS verifier_id, p.max_capacity AS max_capacity, COUNT(c.id) AS assigned_cases").
		Joins("LEFT JOIN cases AS c ON c.assigned_to = p.id AND c.status IN ?", openStatuses()).
		Where("p.role = ? AND p.active = ?", model.RoleVerifier, true).
		Group("p.id, p.max_capacity").
		Order("p.id").
		Scan(&workloads).Error
	if err != nil {
		return nil, err
	}
	return workloads, nil
}

func (s *PrincipalStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
