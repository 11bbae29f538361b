package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/events"
	"github.com/verifyhub/case-engine/internal/store"
	"github.com/verifyhub/case-engine/internal/store/model"
	"github.com/verifyhub/case-engine/pkg/log"
	"go.uber.org/zap"
)

// Directory resolves principals. Get returns store.ErrRecordNotFound for unknown ids.
type Directory interface {
	Get(ctx context.Context, id string) (*model.Principal, error)
	ListVerifierWorkloads(ctx context.Context) ([]model.VerifierWorkload, error)
}

// EmployeeData exposes the arrays that sub-records reference by position.
type EmployeeData interface {
	GetJobHistory(ctx context.Context, employeeID string) ([]model.JobEntry, error)
	GetDocuments(ctx context.Context, employeeID string) ([]model.Document, error)
}

// EventWriter receives domain events once the change that produced them is committed.
type EventWriter interface {
	Write(ctx context.Context, kind, subject string, payload any) error
}

type CaseService struct {
	store     store.Store
	directory Directory
	employees EmployeeData
	events    EventWriter
	cache     CaseCache
	now       func() time.Time
	logger    *log.StructuredLogger
}

type CaseServiceOption func(*CaseService)

func WithEventWriter(w EventWriter) CaseServiceOption {
	return func(s *CaseService) {
		s.events = w
	}
}

func WithCaseCache(c CaseCache) CaseServiceOption {
	return func(s *CaseService) {
		s.cache = c
	}
}

func WithClock(now func() time.Time) CaseServiceOption {
	return func(s *CaseService) {
		s.now = now
	}
}

func NewCaseService(s store.Store, opts ...CaseServiceOption) *CaseService {
	svc := &CaseService{
		store:     s,
		directory: s.Principal(),
		employees: s.Employee(),
		cache:     NewNoopCaseCache(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.NewDebugLogger("case_service"),
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// changeSet collects what a mutation did so that history is written in the
// same transaction and events and metrics are emitted only after commit.
type changeSet struct {
	actor   string
	now     time.Time
	c       *model.Case
	history []model.HistoryEntry
	events  []pendingEvent
	metrics []func()
}

type pendingEvent struct {
	kind    string
	payload func(base events.CaseEvent) any
}

func (cs *changeSet) record(action model.HistoryAction, description, previous, next string) {
	cs.c.HistorySeq++
	entry := model.HistoryEntry{
		CaseID:      cs.c.ID,
		Sequence:    cs.c.HistorySeq,
		Action:      action,
		Description: description,
		PerformedBy: cs.actor,
		Timestamp:   cs.now,
	}
	if previous != "" {
		entry.PreviousStatus = &previous
	}
	if next != "" {
		entry.NewStatus = &next
	}
	cs.history = append(cs.history, entry)
}

func (cs *changeSet) emit(kind string, payload func(base events.CaseEvent) any) {
	cs.events = append(cs.events, pendingEvent{kind: kind, payload: payload})
}

func (cs *changeSet) observe(fn func()) {
	cs.metrics = append(cs.metrics, fn)
}

type mutation struct {
	op     access.Operation
	caseID uuid.UUID
	// expectedVersion is the version the caller observed; zero accepts the current one.
	expectedVersion int
	// unassignedOnly makes the write conditional on nobody holding the case.
	unassignedOnly bool
	// precheck runs before authorization.
	precheck func(c *model.Case) error
	apply    func(ctx context.Context, cs *changeSet) error
}

// mutate reads the case, lets m change it and writes it back with a compare
// and swap on the version, all in one transaction.
func (s *CaseService) mutate(ctx context.Context, actor access.Principal, m mutation) (*model.Case, error) {
	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = store.Rollback(txCtx)
	}()

	c, err := s.store.Case().Get(txCtx, m.caseID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrCaseNotFound(m.caseID)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	if m.precheck != nil {
		if err := m.precheck(c); err != nil {
			return nil, err
		}
	}

	if err := s.authorize(txCtx, actor, c, m.op); err != nil {
		return nil, err
	}

	observed := c.Version
	if m.expectedVersion != 0 && m.expectedVersion != observed {
		return nil, NewErrConflict(c.ID)
	}

	cs := &changeSet{actor: actor.ID, now: s.now(), c: c}
	if err := m.apply(txCtx, cs); err != nil {
		return nil, err
	}
	if len(cs.history) == 0 {
		return nil, fmt.Errorf("%s on case %s recorded no history", m.op, c.ID)
	}

	write := s.store.Case().Update
	if m.unassignedOnly {
		write = s.store.Case().Claim
	}
	if err := write(txCtx, c, observed); err != nil {
		if errors.Is(err, store.ErrVersionMismatch) {
			return nil, NewErrConflict(c.ID)
		}
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	if err := s.store.Case().AppendHistory(txCtx, cs.history...); err != nil {
		if errors.Is(err, store.ErrVersionMismatch) {
			return nil, NewErrConflict(c.ID)
		}
		return nil, fmt.Errorf("failed to append history: %w", err)
	}

	updated, err := s.store.Case().Get(txCtx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload case: %w", err)
	}

	if _, err := store.Commit(txCtx); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, updated, cs)
	return updated, nil
}

func (s *CaseService) afterCommit(ctx context.Context, c *model.Case, cs *changeSet) {
	s.cache.Set(ctx, c)

	for _, fn := range cs.metrics {
		fn()
	}

	if s.events == nil {
		return
	}
	base := events.CaseEvent{
		CaseID:     c.ID.String(),
		EmployeeID: c.EmployeeID,
		CaseType:   string(c.CaseType),
		Actor:      cs.actor,
		Version:    c.Version,
	}
	for _, e := range cs.events {
		if err := s.events.Write(ctx, e.kind, base.CaseID, e.payload(base)); err != nil {
			zap.S().Named("case_service").Errorw("failed to write event", "error", err, "event_kind", e.kind, "case_id", base.CaseID)
		}
	}
}

// authorize masks denied reads as NotFound so that callers cannot probe for
// cases outside their scope.
func (s *CaseService) authorize(ctx context.Context, actor access.Principal, c *model.Case, op access.Operation) error {
	orgID, err := s.employeeOrganization(ctx, actor, c.EmployeeID)
	if err != nil {
		return err
	}

	if access.Authorize(actor, access.TargetFor(c, orgID), op) == access.Allow {
		return nil
	}
	if op == access.OpRead {
		return NewErrCaseNotFound(c.ID)
	}
	return NewErrForbidden(actor.ID, string(op))
}

// employeeOrganization is only looked up for employers, the one role whose rule needs it.
func (s *CaseService) employeeOrganization(ctx context.Context, actor access.Principal, employeeID string) (string, error) {
	if actor.Role != model.RoleEmployer {
		return "", nil
	}

	p, err := s.directory.Get(ctx, employeeID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve employee organization: %w", err)
	}
	return p.OrganizationID, nil
}

func checkRole(actor access.Principal, op access.Operation) error {
	if !access.RoleAllows(actor.Role, op) {
		return NewErrForbidden(actor.ID, string(op))
	}
	return nil
}
