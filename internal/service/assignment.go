package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/events"
	"github.com/verifyhub/case-engine/internal/store"
	"github.com/verifyhub/case-engine/internal/store/model"
	"github.com/verifyhub/case-engine/pkg/metrics"
)

// Assign hands the case to verifierID and resets it to assigned. The write is
// conditional on what the caller observed: with a non-zero expectedVersion the
// case must still be at that version; without one the caller is taken to have
// seen an unassigned case, so the case must still be unassigned. Either way, of
// several concurrent callers exactly one wins and the others get ErrConflict.
// Reassigning a held case therefore needs an expected version.
func (s *CaseService) Assign(ctx context.Context, actor access.Principal, id uuid.UUID, verifierID string, expectedVersion int) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("assign_case").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		WithString("verifier_id", verifierID).
		WithInt("expected_version", expectedVersion).
		Build()

	if err := checkRole(actor, access.OpAssign); err != nil {
		return nil, err
	}
	if verifierID == "" {
		return nil, NewErrValidation("verifier id is required")
	}

	updated, err := s.mutate(ctx, actor, mutation{
		op:              access.OpAssign,
		caseID:          id,
		expectedVersion: expectedVersion,
		unassignedOnly:  expectedVersion == 0,
		precheck:        assignPrecheck(expectedVersion),
		apply: func(ctx context.Context, cs *changeSet) error {
			if err := s.checkVerifier(ctx, verifierID); err != nil {
				return err
			}
			applyAssignment(cs, verifierID, metrics.AssignmentModeAssign)
			return nil
		},
	})
	if err != nil {
		observeAssignmentFailure(metrics.AssignmentModeAssign, err)
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithInt("version", updated.Version).Log()
	return updated, nil
}

// Claim assigns an unassigned case to the calling verifier.
func (s *CaseService) Claim(ctx context.Context, actor access.Principal, id uuid.UUID, expectedVersion int) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("claim_case").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		Build()

	if actor.Role != model.RoleVerifier {
		return nil, NewErrForbidden(actor.ID, string(access.OpClaim))
	}

	updated, err := s.mutate(ctx, actor, mutation{
		op:              access.OpClaim,
		caseID:          id,
		expectedVersion: expectedVersion,
		unassignedOnly:  true,
		precheck:        requireUnassigned,
		apply: func(ctx context.Context, cs *changeSet) error {
			if err := s.checkVerifier(ctx, actor.ID); err != nil {
				return err
			}
			applyAssignment(cs, actor.ID, metrics.AssignmentModeClaim)
			return nil
		},
	})
	if err != nil {
		observeAssignmentFailure(metrics.AssignmentModeClaim, err)
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithInt("version", updated.Version).Log()
	return updated, nil
}

// AutoAssign assigns the case to the least loaded verifier, see SelectVerifier.
// expectedVersion has the same meaning as for Assign.
func (s *CaseService) AutoAssign(ctx context.Context, actor access.Principal, id uuid.UUID, expectedVersion int) (*model.Case, error) {
	tracer := s.logger.WithContext(ctx).Operation("auto_assign_case").
		WithString("actor", actor.ID).
		WithUUID("case_id", id).
		Build()

	if err := checkRole(actor, access.OpAssign); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, actor, mutation{
		op:              access.OpAssign,
		caseID:          id,
		expectedVersion: expectedVersion,
		unassignedOnly:  expectedVersion == 0,
		precheck:        assignPrecheck(expectedVersion),
		apply: func(ctx context.Context, cs *changeSet) error {
			workloads, err := s.directory.ListVerifierWorkloads(ctx)
			if err != nil {
				return fmt.Errorf("failed to list verifier workloads: %w", err)
			}

			chosen, found := SelectVerifier(workloads)
			if !found {
				return NewErrNoVerifierAvailable()
			}
			tracer.Step("verifier_selected").
				WithString("verifier_id", chosen.VerifierID).
				WithInt("assigned_cases", chosen.AssignedCases).
				WithInt("max_capacity", chosen.MaxCapacity).
				Log()

			applyAssignment(cs, chosen.VerifierID, metrics.AssignmentModeAuto)
			return nil
		},
	})
	if err != nil {
		observeAssignmentFailure(metrics.AssignmentModeAuto, err)
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithStringPtr("assigned_to", updated.AssignedTo).Log()
	return updated, nil
}

// SelectVerifier picks the verifier with the lowest assigned/capacity ratio,
// breaking ties by verifier id. Verifiers at or over capacity are skipped.
func SelectVerifier(workloads []model.VerifierWorkload) (model.VerifierWorkload, bool) {
	candidates := make([]model.VerifierWorkload, 0, len(workloads))
	for _, w := range workloads {
		if w.HasCapacity() {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return model.VerifierWorkload{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := candidates[i].Ratio(), candidates[j].Ratio()
		if ri != rj {
			return ri < rj
		}
		return candidates[i].VerifierID < candidates[j].VerifierID
	})
	return candidates[0], true
}

func assignPrecheck(expectedVersion int) func(c *model.Case) error {
	if expectedVersion == 0 {
		return requireUnassigned
	}
	return rejectClosed
}

func requireUnassigned(c *model.Case) error {
	if err := rejectClosed(c); err != nil {
		return err
	}
	if c.AssignedTo != nil {
		return NewErrAlreadyAssigned(c.ID)
	}
	return nil
}

func (s *CaseService) checkVerifier(ctx context.Context, verifierID string) error {
	v, err := s.directory.Get(ctx, verifierID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrVerifierNotFound(verifierID)
		}
		return fmt.Errorf("failed to get verifier: %w", err)
	}
	if v.Role != model.RoleVerifier {
		return NewErrInvalidVerifier(verifierID, fmt.Sprintf("role is %s", v.Role))
	}
	if !v.Active {
		return NewErrInvalidVerifier(verifierID, "principal is inactive")
	}
	return nil
}

func applyAssignment(cs *changeSet, verifierID, mode string) {
	c := cs.c
	previousAssignee := c.AssignedTo
	previousStatus := c.Status

	assignee := verifierID
	assignedBy := cs.actor
	assignedAt := cs.now
	c.AssignedTo = &assignee
	c.AssignedBy = &assignedBy
	c.AssignedAt = &assignedAt
	c.Status = model.CaseStatusAssigned

	description := fmt.Sprintf("assigned to %s", verifierID)
	if previousAssignee != nil {
		description = fmt.Sprintf("%s, previously %s", description, *previousAssignee)
	}
	cs.record(model.ActionCaseAssigned, description, string(previousStatus), string(c.Status))

	cs.emit(events.CaseAssignedKind, func(base events.CaseEvent) any {
		return events.CaseAssignedEvent{
			CaseEvent:        base,
			AssignedTo:       verifierID,
			PreviousAssignee: previousAssignee,
			Mode:             mode,
		}
	})
	cs.observe(func() {
		metrics.IncreaseAssignmentsMetric(mode, metrics.AssignmentResultSuccess)
		if previousStatus != model.CaseStatusAssigned {
			metrics.IncreaseStatusTransitionsMetric(string(previousStatus), string(model.CaseStatusAssigned))
		}
	})
}

func observeAssignmentFailure(mode string, err error) {
	var conflict *ErrConflict
	if errors.As(err, &conflict) {
		metrics.IncreaseAssignmentsMetric(mode, metrics.AssignmentResultConflict)
	}
}
