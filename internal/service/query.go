package service

import (
	"context"
	"fmt"

	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/store"
	"github.com/verifyhub/case-engine/internal/store/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	PoolUnassigned = "unassigned"
)

// CaseFilter represents filtering options for listing cases
type CaseFilter struct {
	Status   string
	Priority string
	CaseType string
	Search   string
	// Pool set to "unassigned" lists cases nobody holds instead of the caller's own.
	Pool     string
	Page     int
	PageSize int
	// After is a cursor from a previous page. When set it replaces Page, so
	// cases inserted meanwhile cannot shift the rows still to be returned.
	After string
}

func NewCaseFilter() *CaseFilter {
	return &CaseFilter{Page: 1, PageSize: DefaultPageSize}
}

func (f *CaseFilter) WithStatus(status string) *CaseFilter {
	f.Status = status
	return f
}

func (f *CaseFilter) WithPriority(priority string) *CaseFilter {
	f.Priority = priority
	return f
}

func (f *CaseFilter) WithCaseType(caseType string) *CaseFilter {
	f.CaseType = caseType
	return f
}

func (f *CaseFilter) WithSearch(term string) *CaseFilter {
	f.Search = term
	return f
}

func (f *CaseFilter) WithUnassignedPool() *CaseFilter {
	f.Pool = PoolUnassigned
	return f
}

func (f *CaseFilter) WithCursor(after string) *CaseFilter {
	f.After = after
	return f
}

func (f *CaseFilter) WithPage(page, pageSize int) *CaseFilter {
	f.Page = page
	f.PageSize = pageSize
	return f
}

// ListCases returns one page of the cases visible to actor and the total
// number of matches across all pages.
func (s *CaseService) ListCases(ctx context.Context, actor access.Principal, filter *CaseFilter) (model.CaseList, int64, error) {
	if filter == nil {
		filter = NewCaseFilter()
	}

	tracer := s.logger.WithContext(ctx).Operation("list_cases").
		WithString("actor", actor.ID).
		WithString("role", string(actor.Role)).
		WithString("status", filter.Status).
		WithString("priority", filter.Priority).
		WithString("case_type", filter.CaseType).
		WithString("pool", filter.Pool).
		WithInt("page", filter.Page).
		WithInt("page_size", filter.PageSize).
		WithBool("cursor", filter.After != "").
		Build()

	if err := checkRole(actor, access.OpRead); err != nil {
		return nil, 0, err
	}

	storeFilter, err := scopeFor(actor, filter.Pool)
	if err != nil {
		return nil, 0, err
	}

	if filter.Status != "" {
		status, err := parseCaseStatus(filter.Status)
		if err != nil {
			return nil, 0, err
		}
		storeFilter = storeFilter.ByStatus(status)
	}
	if filter.Priority != "" {
		switch p := model.Priority(filter.Priority); p {
		case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent:
			storeFilter = storeFilter.ByPriority(p)
		default:
			return nil, 0, NewErrValidation("unknown priority %q", filter.Priority)
		}
	}
	if filter.CaseType != "" {
		switch t := model.CaseType(filter.CaseType); t {
		case model.CaseTypeProfileUpdate, model.CaseTypeJobHistory, model.CaseTypeDocumentVerification:
			storeFilter = storeFilter.ByCaseType(t)
		default:
			return nil, 0, NewErrValidation("unknown case type %q", filter.CaseType)
		}
	}
	if filter.Search != "" {
		storeFilter = storeFilter.BySearch(filter.Search)
	}

	page, pageSize := NormalizePage(filter.Page, filter.PageSize)

	opts := store.NewCaseQueryOptions().
		WithNewestFirst().
		WithLimit(pageSize)
	if filter.After != "" {
		createdAt, lastID, err := decodeCursor(filter.After)
		if err != nil {
			return nil, 0, err
		}
		opts = opts.WithKeysetAfter(createdAt, lastID.String())
	} else {
		opts = opts.WithOffset((page - 1) * pageSize)
	}

	total, err := s.store.Case().Count(ctx, storeFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	cases, err := s.store.Case().List(ctx, storeFilter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}

	tracer.Success().WithInt("count", len(cases)).WithInt("total", int(total)).Log()
	return cases, total, nil
}

// scopeFor restricts the query to what the role may read.
func scopeFor(actor access.Principal, pool string) (*store.CaseQueryFilter, error) {
	if pool != "" && pool != PoolUnassigned {
		return nil, NewErrValidation("unknown pool %q", pool)
	}

	f := store.NewCaseQueryFilter()
	switch actor.Role {
	case model.RoleAdmin:
		if pool == PoolUnassigned {
			f = f.Unassigned()
		}
	case model.RoleEmployee:
		f = f.ByEmployeeID(actor.ID)
	case model.RoleEmployer:
		if actor.OrganizationID == "" {
			return f.MatchNone(), nil
		}
		f = f.ByEmployeeOrganization(actor.OrganizationID)
	case model.RoleVerifier:
		if pool == PoolUnassigned {
			f = f.Unassigned()
		} else {
			f = f.ByAssignedTo(actor.ID)
		}
	default:
		return nil, NewErrForbidden(actor.ID, string(access.OpRead))
	}
	return f, nil
}

// NormalizePage clamps page to at least 1 and pageSize to (0, MaxPageSize], defaulting to DefaultPageSize.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
