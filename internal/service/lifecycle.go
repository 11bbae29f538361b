package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/events"
	"github.com/verifyhub/case-engine/internal/service/mappers"
	"github.com/verifyhub/case-engine/internal/store"
	"github.com/verifyhub/case-engine/internal/store/model"
	"github.com/verifyhub/case-engine/pkg/metrics"
)

// statusTransitions lists the edges UpdateStatus may take. Entering assigned
// is only possible through assignment.
var statusTransitions = map[model.CaseStatus][]model.CaseStatus{
	model.CaseStatusAssigned: {
		model.CaseStatusAssigned,
		model.CaseStatusInProgress,
		model.CaseStatusRejected,
	},
	model.CaseStatusInProgress: {
		model.CaseStatusInProgress,
		model.CaseStatusCompleted,
		model.CaseStatusRejected,
	},
}

func parseCaseStatus(value string) (model.CaseStatus, error) {
	s := model.CaseStatus(value)
	switch s {
	case model.CaseStatusPending, model.CaseStatusAssigned, model.CaseStatusInProgress,
		model.CaseStatusCompleted, model.CaseStatusRejected:
		return s, nil
	}
	return "", NewErrInvalidStatus(value)
}

func parseVerificationStatus(value string) (model.VerificationStatus, error) {
	s := model.VerificationStatus(value)
	switch s {
	case model.VerificationPending, model.VerificationVerified, model.VerificationRejected:
		return s, nil
	}
	return "", NewErrInvalidStatus(value)
}

func (s *CaseService) CreateCase(ctx context.Context, actor access.Principal, form mappers.CaseCreateForm) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("create_case").
		WithString("actor", actor.ID).
		WithString("employee_id", form.EmployeeID).
		WithString("case_type", form.CaseType).
		WithString("priority", form.Priority).
		Build()

	if err := checkRole(actor, access.OpCreate); err != nil {
		return nil, err
	}

	if err := validateCreateForm(form); err != nil {
		return nil, err
	}

	if access.Authorize(actor, access.Target{EmployeeID: form.EmployeeID}, access.OpCreate) != access.Allow {
		return nil, NewErrForbidden(actor.ID, string(access.OpCreate))
	}

	employee, err := s.directory.Get(ctx, form.EmployeeID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrEmployeeNotFound(form.EmployeeID)
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	if employee.Role != model.RoleEmployee {
		return nil, NewErrEmployeeNotFound(form.EmployeeID)
	}

	now := s.now()
	c := form.ToModel(now)
	cs := &changeSet{actor: actor.ID, now: now, c: &c}
	cs.record(model.ActionCaseCreated, fmt.Sprintf("%s case opened", c.CaseType), "", string(c.Status))
	cs.emit(events.CaseCreatedKind, func(base events.CaseEvent) any {
		return events.CaseCreatedEvent{CaseEvent: base, Priority: string(c.Priority)}
	})
	tracer.Step("case_built").WithUUID("case_id", c.ID).Log()

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = store.Rollback(txCtx)
	}()

	if _, err := s.store.Case().Create(txCtx, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}
	if err := s.store.Case().AppendHistory(txCtx, cs.history...); err != nil {
		return nil, fmt.Errorf("failed to append history: %w", err)
	}

	created, err := s.store.Case().Get(txCtx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload case: %w", err)
	}

	if _, err := store.Commit(txCtx); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, created, cs)

	tracer.Success().WithUUID("case_id", created.ID).Log()
	return created, nil
}

func validateCreateForm(form mappers.CaseCreateForm) error {
	if form.EmployeeID == "" {
		return NewErrValidation("employee id is required")
	}
	switch model.CaseType(form.CaseType) {
	case model.CaseTypeProfileUpdate, model.CaseTypeJobHistory, model.CaseTypeDocumentVerification:
	default:
		return NewErrValidation("unknown case type %q", form.CaseType)
	}
	switch model.Priority(form.Priority) {
	case "", model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent:
	default:
		return NewErrValidation("unknown priority %q", form.Priority)
	}
	return nil
}

func (s *CaseService) GetCase(ctx context.Context, actor access.Principal, id uuid.UUID) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("get_case").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		Build()

	if err := checkRole(actor, access.OpRead); err != nil {
		return nil, err
	}

	c, cached := s.cache.Get(ctx, id)
	if !cached {
		var err error
		c, err = s.store.Case().Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrCaseNotFound(id)
			}
			return nil, fmt.Errorf("failed to get case: %w", err)
		}
		s.cache.Set(ctx, c)
	}

	if err := s.authorize(ctx, actor, c, access.OpRead); err != nil {
		return nil, err
	}

	tracer.Success().WithBool("cached", cached).WithInt("version", c.Version).Log()
	return c, nil
}

func (s *CaseService) UpdateStatus(ctx context.Context, actor access.Principal, id uuid.UUID, form mappers.StatusUpdateForm) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("update_status").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		WithString("new_status", form.Status).
		WithInt("expected_version", form.ExpectedVersion).
		Build()

	if err := checkRole(actor, access.OpUpdateStatus); err != nil {
		return nil, err
	}

	next, err := parseCaseStatus(form.Status)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, actor, mutation{
		op:              access.OpUpdateStatus,
		caseID:          id,
		expectedVersion: form.ExpectedVersion,
		apply: func(_ context.Context, cs *changeSet) error {
			return applyStatus(cs, next, form.Notes)
		},
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithString("status", string(updated.Status)).WithInt("version", updated.Version).Log()
	return updated, nil
}

func applyStatus(cs *changeSet, next model.CaseStatus, notes string) error {
	c := cs.c
	previous := c.Status
	if !slices.Contains(statusTransitions[previous], next) {
		return NewErrInvalidTransition(string(previous), string(next))
	}

	c.Status = next
	description := fmt.Sprintf("status changed from %s to %s", previous, next)
	if notes != "" {
		description = fmt.Sprintf("%s: %s", description, notes)
	}
	cs.record(model.ActionStatusUpdated, description, string(previous), string(next))

	if next == model.CaseStatusInProgress && c.ProfileStatus == model.ProfileStatusUpdated {
		setProfileStatus(cs, model.ProfileStatusPending)
	}
	if next == model.CaseStatusCompleted && c.CaseType == model.CaseTypeProfileUpdate && c.ProfileStatus != model.ProfileStatusVerified {
		setProfileStatus(cs, model.ProfileStatusVerified)
	}

	cs.emit(events.StatusChangedKind, func(base events.CaseEvent) any {
		return events.StatusChangedEvent{
			CaseEvent:      base,
			PreviousStatus: string(previous),
			NewStatus:      string(next),
			Notes:          notes,
		}
	})
	cs.observe(func() {
		metrics.IncreaseStatusTransitionsMetric(string(previous), string(next))
	})
	return nil
}

func setProfileStatus(cs *changeSet, next model.ProfileStatus) {
	previous := cs.c.ProfileStatus
	cs.c.ProfileStatus = next
	cs.record(model.ActionProfileStatusUpdated,
		fmt.Sprintf("profile status changed from %s to %s", previous, next),
		string(previous), string(next))
}

func (s *CaseService) UpdateDocumentVerification(ctx context.Context, actor access.Principal, id uuid.UUID, form mappers.DocumentVerificationForm) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("update_document_verification").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		WithString("document_type", form.DocumentType).
		WithInt("job_entry_index", form.JobEntryIndex).
		WithInt("document_slot_index", form.DocumentSlotIndex).
		WithString("new_status", form.Status).
		Build()

	if err := checkRole(actor, access.OpUpdateDocument); err != nil {
		return nil, err
	}

	status, err := parseVerificationStatus(form.Status)
	if err != nil {
		return nil, err
	}

	if form.DocumentType == "" {
		return nil, NewErrValidation("document type is required")
	}
	if form.JobEntryIndex < model.ProfileLevelJobEntry {
		return nil, NewErrValidation("job entry index %d is out of range", form.JobEntryIndex)
	}
	if form.DocumentSlotIndex < 0 {
		return nil, NewErrValidation("document slot index %d is out of range", form.DocumentSlotIndex)
	}

	updated, err := s.mutate(ctx, actor, mutation{
		op:              access.OpUpdateDocument,
		caseID:          id,
		expectedVersion: form.ExpectedVersion,
		apply: func(ctx context.Context, cs *changeSet) error {
			if err := rejectClosed(cs.c); err != nil {
				return err
			}
			doc, err := s.resolveDocument(ctx, cs.c.EmployeeID, form.Key())
			if err != nil {
				return err
			}
			tracer.Step("document_resolved").WithUUID("document_ref", doc.ID).Log()

			previous := ""
			for _, existing := range cs.c.DocumentVerifications {
				if existing.Key() == form.Key() {
					previous = string(existing.Status)
				}
			}

			ref := doc.ID.String()
			if err := s.store.Case().UpsertDocumentVerification(ctx, model.DocumentVerification{
				CaseID:            cs.c.ID,
				DocumentType:      form.DocumentType,
				JobEntryIndex:     form.JobEntryIndex,
				DocumentSlotIndex: form.DocumentSlotIndex,
				DocumentRef:       &ref,
				Status:            status,
				VerifiedBy:        cs.actor,
				VerifiedAt:        cs.now,
				Notes:             form.Notes,
			}); err != nil {
				return fmt.Errorf("failed to upsert document verification: %w", err)
			}

			cs.record(model.ActionDocumentVerification, fmt.Sprintf("%s %s", form.DocumentType, status), previous, string(status))
			cs.emit(events.DocumentVerifiedKind, func(base events.CaseEvent) any {
				return events.DocumentVerifiedEvent{
					CaseEvent:         base,
					DocumentType:      form.DocumentType,
					JobEntryIndex:     form.JobEntryIndex,
					DocumentSlotIndex: form.DocumentSlotIndex,
					Status:            string(status),
				}
			})
			cs.observe(func() {
				metrics.IncreaseSubRecordUpdatesMetric(metrics.SubRecordKindDocument, string(status))
			})
			return nil
		},
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithInt("version", updated.Version).Log()
	return updated, nil
}

func (s *CaseService) UpdateJobHistoryVerification(ctx context.Context, actor access.Principal, id uuid.UUID, form mappers.JobHistoryVerificationForm) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("update_job_history_verification").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		WithInt("job_entry_index", form.JobEntryIndex).
		WithString("new_status", form.Status).
		Build()

	if err := checkRole(actor, access.OpUpdateJobHistory); err != nil {
		return nil, err
	}

	status, err := parseVerificationStatus(form.Status)
	if err != nil {
		return nil, err
	}

	if form.JobEntryIndex < 0 {
		return nil, NewErrValidation("job entry index %d is out of range", form.JobEntryIndex)
	}

	updated, err := s.mutate(ctx, actor, mutation{
		op:              access.OpUpdateJobHistory,
		caseID:          id,
		expectedVersion: form.ExpectedVersion,
		apply: func(ctx context.Context, cs *changeSet) error {
			if err := rejectClosed(cs.c); err != nil {
				return err
			}
			entry, err := s.resolveJobEntry(ctx, cs.c.EmployeeID, form.JobEntryIndex)
			if err != nil {
				return err
			}
			tracer.Step("job_entry_resolved").WithUUID("job_entry_ref", entry.ID).Log()

			previous := ""
			for _, existing := range cs.c.JobHistoryVerifications {
				if existing.JobEntryIndex == form.JobEntryIndex {
					previous = string(existing.Status)
				}
			}

			ref := entry.ID.String()
			if err := s.store.Case().UpsertJobHistoryVerification(ctx, model.JobHistoryVerification{
				CaseID:        cs.c.ID,
				JobEntryIndex: form.JobEntryIndex,
				JobEntryRef:   &ref,
				Status:        status,
				VerifiedBy:    cs.actor,
				VerifiedAt:    cs.now,
				Notes:         form.Notes,
			}); err != nil {
				return fmt.Errorf("failed to upsert job history verification: %w", err)
			}

			cs.record(model.ActionJobHistoryVerification,
				fmt.Sprintf("job entry %d (%s) %s", form.JobEntryIndex, entry.Company, status),
				previous, string(status))
			cs.emit(events.JobEntryVerifiedKind, func(base events.CaseEvent) any {
				return events.JobEntryVerifiedEvent{
					CaseEvent:     base,
					JobEntryIndex: form.JobEntryIndex,
					Status:        string(status),
				}
			})
			cs.observe(func() {
				metrics.IncreaseSubRecordUpdatesMetric(metrics.SubRecordKindJobEntry, string(status))
			})
			return nil
		},
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithInt("version", updated.Version).Log()
	return updated, nil
}

// FinalizeRollups commits documentStatus and jobHistoryStatus from the
// sub-records once none of them is pending. A kind without sub-records keeps
// its rollup.
func (s *CaseService) FinalizeRollups(ctx context.Context, actor access.Principal, id uuid.UUID, expectedVersion int) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("finalize_rollups").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		Build()

	if err := checkRole(actor, access.OpFinalize); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, actor, mutation{
		op:              access.OpFinalize,
		caseID:          id,
		expectedVersion: expectedVersion,
		apply: func(_ context.Context, cs *changeSet) error {
			c := cs.c
			if len(c.DocumentVerifications) == 0 && len(c.JobHistoryVerifications) == 0 {
				return NewErrRollupsNotReady("case has no verified items")
			}

			docStatuses := make([]model.VerificationStatus, 0, len(c.DocumentVerifications))
			for _, dv := range c.DocumentVerifications {
				docStatuses = append(docStatuses, dv.Status)
			}
			jobStatuses := make([]model.VerificationStatus, 0, len(c.JobHistoryVerifications))
			for _, jv := range c.JobHistoryVerifications {
				jobStatuses = append(jobStatuses, jv.Status)
			}

			docRollup, err := rollup(docStatuses)
			if err != nil {
				return err
			}
			jobRollup, err := rollup(jobStatuses)
			if err != nil {
				return err
			}

			if docRollup != "" {
				c.DocumentStatus = docRollup
			}
			if jobRollup != "" {
				c.JobHistoryStatus = jobRollup
			}

			cs.record(model.ActionRollupsFinalized,
				fmt.Sprintf("document status %s, job history status %s", c.DocumentStatus, c.JobHistoryStatus),
				"", "")
			return nil
		},
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().
		WithString("document_status", string(updated.DocumentStatus)).
		WithString("job_history_status", string(updated.JobHistoryStatus)).
		Log()
	return updated, nil
}

// rollup returns "" for an empty set.
func rollup(statuses []model.VerificationStatus) (model.VerificationStatus, error) {
	if len(statuses) == 0 {
		return "", nil
	}
	result := model.VerificationVerified
	for _, st := range statuses {
		switch st {
		case model.VerificationPending:
			return "", NewErrRollupsNotReady("some items are still pending")
		case model.VerificationRejected:
			result = model.VerificationRejected
		}
	}
	return result, nil
}

func rejectClosed(c *model.Case) error {
	if c.Status.IsTerminal() {
		return NewErrCaseClosed(c.ID, string(c.Status))
	}
	return nil
}

// resolveJobEntry finds the live job entry at position index.
func (s *CaseService) resolveJobEntry(ctx context.Context, employeeID string, index int) (*model.JobEntry, error) {
	entries, err := s.employees.GetJobHistory(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job history: %w", err)
	}
	for i := range entries {
		if entries[i].Position == index && entries[i].RetiredAt == nil {
			return &entries[i], nil
		}
	}
	return nil, NewErrValidation("job entry index %d is out of range", index)
}

// resolveDocument finds the live document in the slot named by key. Job
// scoped documents also require their job entry to be live.
func (s *CaseService) resolveDocument(ctx context.Context, employeeID string, key model.DocumentKey) (*model.Document, error) {
	if key.JobEntryIndex != model.ProfileLevelJobEntry {
		if _, err := s.resolveJobEntry(ctx, employeeID, key.JobEntryIndex); err != nil {
			return nil, err
		}
	}

	docs, err := s.employees.GetDocuments(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	for i := range docs {
		d := docs[i]
		if d.DocumentType == key.DocumentType && d.JobEntryIndex == key.JobEntryIndex &&
			d.SlotIndex == key.DocumentSlotIndex && d.RetiredAt == nil {
			return &docs[i], nil
		}
	}
	return nil, NewErrValidation("no %s document in slot %d of job entry %d", key.DocumentType, key.DocumentSlotIndex, key.JobEntryIndex)
}
