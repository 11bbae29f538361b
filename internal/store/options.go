package store

import (
	"strings"
	"time"

	"github.com/verifyhub/case-engine/internal/store/model"
	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type CaseQueryFilter BaseQuerier

func NewCaseQueryFilter() *CaseQueryFilter {
	return &CaseQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *CaseQueryFilter) ByEmployeeID(employeeID string) *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("employee_id = ?", employeeID)
	})
	return f
}

// ByEmployeeOrganization keeps cases whose employee belongs to orgID in the directory.
func (f *CaseQueryFilter) ByEmployeeOrganization(orgID string) *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("employee_id IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&model.Principal{}).
				Select("id").
				Where("organization_id = ?", orgID))
	})
	return f
}

func (f *CaseQueryFilter) ByAssignedTo(verifierID string) *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("assigned_to = ?", verifierID)
	})
	return f
}

func (f *CaseQueryFilter) Unassigned() *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("assigned_to IS NULL")
	})
	return f
}

func (f *CaseQueryFilter) ByStatus(status model.CaseStatus) *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return f
}

func (f *CaseQueryFilter) ByPriority(priority model.Priority) *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("priority = ?", priority)
	})
	return f
}

func (f *CaseQueryFilter) ByCaseType(caseType model.CaseType) *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("case_type = ?", caseType)
	})
	return f
}

// BySearch matches the employee name or email, case-insensitively.
func (f *CaseQueryFilter) BySearch(term string) *CaseQueryFilter {
	pattern := "%" + strings.ToLower(term) + "%"
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("employee_id IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&model.Principal{}).
				Select("id").
				Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern))
	})
	return f
}

func (f *CaseQueryFilter) MatchNone() *CaseQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("1 = 0")
	})
	return f
}

type CaseQueryOptions BaseQuerier

func NewCaseQueryOptions() *CaseQueryOptions {
	return &CaseQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *CaseQueryOptions) WithLimit(limit int) *CaseQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

func (o *CaseQueryOptions) WithOffset(offset int) *CaseQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(offset)
	})
	return o
}

// WithNewestFirst orders by creation time, newest first, with the id as tie-breaker
// so that pages are stable.
func (o *CaseQueryOptions) WithNewestFirst() *CaseQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at DESC").Order("id ASC")
	})
	return o
}

// WithKeysetAfter continues a WithNewestFirst listing after the row at
// (createdAt, id). Rows inserted after the previous page was read either sort
// before that row or after it, so they never repeat an already returned row.
func (o *CaseQueryOptions) WithKeysetAfter(createdAt time.Time, id string) *CaseQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(created_at < ? OR (created_at = ? AND id > ?))", createdAt, createdAt, id)
	})
	return o
}
