package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/events"
	"github.com/verifyhub/case-engine/internal/service"
	"github.com/verifyhub/case-engine/internal/service/mappers"
	"github.com/verifyhub/case-engine/internal/store/model"
)

var _ = Describe("Case lifecycle", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	Context("CreateCase", func() {
		It("opens a pending, unassigned case at version 1", func() {
			c := h.createCase("emp-1", model.CaseTypeProfileUpdate)

			Expect(c.Status).To(Equal(model.CaseStatusPending))
			Expect(c.AssignedTo).To(BeNil())
			Expect(c.Version).To(Equal(1))
			Expect(c.ProfileStatus).To(Equal(model.ProfileStatusUpdated))
			Expect(c.Priority).To(Equal(model.PriorityHigh))
			Expect(c.History).To(HaveLen(1))
			Expect(c.History[0].Action).To(Equal(model.ActionCaseCreated))
			Expect(c.History[0].Sequence).To(Equal(1))
			Expect(h.events.Kinds()).To(Equal([]string{events.CaseCreatedKind}))
		})

		It("stamps the case and its history with the service clock", func() {
			fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
			svc := service.NewCaseService(h.store, service.WithClock(func() time.Time { return fixed }))

			c, err := svc.CreateCase(context.TODO(), admin, mappers.CaseCreateForm{EmployeeID: "emp-2", CaseType: "job_history"})
			Expect(err).To(BeNil())
			Expect(c.CreatedAt).To(BeTemporally("~", fixed, time.Second))
			Expect(c.History[0].Timestamp).To(BeTemporally("~", fixed, time.Second))
		})

		It("lets an employee open a case for themselves only", func() {
			_, err := h.svc.CreateCase(context.TODO(), employee1, mappers.CaseCreateForm{EmployeeID: "emp-1", CaseType: "job_history"})
			Expect(err).To(BeNil())

			_, err = h.svc.CreateCase(context.TODO(), employee1, mappers.CaseCreateForm{EmployeeID: "emp-2", CaseType: "job_history"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))
		})

		It("refuses verifiers, unknown employees and unknown case types", func() {
			_, err := h.svc.CreateCase(context.TODO(), verifier1, mappers.CaseCreateForm{EmployeeID: "emp-1", CaseType: "job_history"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))

			_, err = h.svc.CreateCase(context.TODO(), admin, mappers.CaseCreateForm{EmployeeID: "nobody", CaseType: "job_history"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			_, err = h.svc.CreateCase(context.TODO(), admin, mappers.CaseCreateForm{EmployeeID: "ver-1", CaseType: "job_history"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			_, err = h.svc.CreateCase(context.TODO(), admin, mappers.CaseCreateForm{EmployeeID: "emp-1", CaseType: "tax_audit"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})
	})

	Context("end to end", func() {
		It("walks a profile update case from intake to completion", func() {
			c := h.createCase("emp-1", model.CaseTypeProfileUpdate)

			c, err := h.svc.Assign(context.TODO(), admin, c.ID, "ver-1", c.Version)
			Expect(err).To(BeNil())
			Expect(c.Status).To(Equal(model.CaseStatusAssigned))
			Expect(*c.AssignedTo).To(Equal("ver-1"))
			Expect(*c.AssignedBy).To(Equal(admin.ID))
			Expect(c.AssignedAt).ToNot(BeNil())
			Expect(c.History).To(HaveLen(2))
			Expect(c.History[1].Action).To(Equal(model.ActionCaseAssigned))

			c, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeNil())
			Expect(c.Status).To(Equal(model.CaseStatusInProgress))
			Expect(c.ProfileStatus).To(Equal(model.ProfileStatusPending))

			c, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, mappers.DocumentVerificationForm{
				DocumentType:      "resume",
				JobEntryIndex:     -1,
				DocumentSlotIndex: 0,
				Status:            "verified",
			})
			Expect(err).To(BeNil())
			Expect(c.DocumentVerifications).To(HaveLen(1))
			Expect(c.DocumentVerifications[0].Status).To(Equal(model.VerificationVerified))
			Expect(c.DocumentVerifications[0].DocumentRef).ToNot(BeNil())

			c, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "completed", Notes: "all good"})
			Expect(err).To(BeNil())
			Expect(c.Status).To(Equal(model.CaseStatusCompleted))
			Expect(c.ProfileStatus).To(Equal(model.ProfileStatusVerified))

			actions := make([]model.HistoryAction, 0, len(c.History))
			for i, entry := range c.History {
				Expect(entry.Sequence).To(Equal(i + 1))
				actions = append(actions, entry.Action)
			}
			Expect(actions).To(Equal([]model.HistoryAction{
				model.ActionCaseCreated,
				model.ActionCaseAssigned,
				model.ActionStatusUpdated,
				model.ActionProfileStatusUpdated,
				model.ActionDocumentVerification,
				model.ActionStatusUpdated,
				model.ActionProfileStatusUpdated,
			}))
			Expect(c.History[5].Description).To(ContainSubstring("all good"))

			Expect(h.events.Kinds()).To(Equal([]string{
				events.CaseCreatedKind,
				events.CaseAssignedKind,
				events.StatusChangedKind,
				events.DocumentVerifiedKind,
				events.StatusChangedKind,
			}))
		})
	})

	Context("UpdateStatus", func() {
		It("moves profile status to pending once and is idempotent on repeat", func() {
			c := h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")

			c, err := h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeNil())
			Expect(c.ProfileStatus).To(Equal(model.ProfileStatusPending))
			historyAfterFirst := len(c.History)

			c, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeNil())
			Expect(c.Status).To(Equal(model.CaseStatusInProgress))
			Expect(c.ProfileStatus).To(Equal(model.ProfileStatusPending))
			Expect(c.History).To(HaveLen(historyAfterFirst + 1))
			Expect(c.History[len(c.History)-1].Action).To(Equal(model.ActionStatusUpdated))
		})

		It("does not verify the profile when a non profile case completes", func() {
			c := h.assignedCase("emp-1", model.CaseTypeJobHistory, "ver-1")

			c, err := h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeNil())
			c, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "completed"})
			Expect(err).To(BeNil())
			Expect(c.ProfileStatus).To(Equal(model.ProfileStatusPending))
		})

		It("lets the assignee reject without starting", func() {
			c := h.assignedCase("emp-1", model.CaseTypeJobHistory, "ver-1")

			c, err := h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "rejected"})
			Expect(err).To(BeNil())
			Expect(c.Status).To(Equal(model.CaseStatusRejected))
		})

		It("rejects edges outside the state machine", func() {
			c := h.createCase("emp-1", model.CaseTypeProfileUpdate)

			_, err := h.svc.UpdateStatus(context.TODO(), admin, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))

			c = h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")
			_, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "completed"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))

			_, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "pending"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))
		})

		It("accepts nothing once the case is terminal", func() {
			c := h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")
			c, err := h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "rejected"})
			Expect(err).To(BeNil())

			for _, next := range []string{"assigned", "in_progress", "completed", "rejected"} {
				_, err = h.svc.UpdateStatus(context.TODO(), admin, c.ID, mappers.StatusUpdateForm{Status: next})
				Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}), next)
			}
			_, err = h.svc.Assign(context.TODO(), admin, c.ID, "ver-2", 0)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))
		})

		It("reports unknown statuses", func() {
			c := h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")
			_, err := h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "done"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidStatus{}))
		})

		It("only lets the assignee or an admin drive the case", func() {
			c := h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")

			_, err := h.svc.UpdateStatus(context.TODO(), verifier2, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))

			_, err = h.svc.UpdateStatus(context.TODO(), employee1, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))

			c, err = h.svc.UpdateStatus(context.TODO(), admin, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeNil())
			Expect(c.Status).To(Equal(model.CaseStatusInProgress))
		})

		It("refuses a stale expected version", func() {
			c := h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")

			_, err := h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "in_progress", ExpectedVersion: c.Version - 1})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConflict{}))

			_, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "in_progress", ExpectedVersion: c.Version})
			Expect(err).To(BeNil())
		})

		It("returns not found for a missing case", func() {
			_, err := h.svc.UpdateStatus(context.TODO(), admin, uuid.New(), mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("sub-records", func() {
		var c *model.Case

		BeforeEach(func() {
			c = h.assignedCase("emp-1", model.CaseTypeDocumentVerification, "ver-1")
		})

		documentForm := func(docType string, jobEntry int, status string) mappers.DocumentVerificationForm {
			return mappers.DocumentVerificationForm{DocumentType: docType, JobEntryIndex: jobEntry, DocumentSlotIndex: 0, Status: status}
		}

		It("keeps one record per composite key", func() {
			var err error
			for _, status := range []string{"pending", "rejected", "verified"} {
				c, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("resume", -1, status))
				Expect(err).To(BeNil())
			}

			Expect(c.DocumentVerifications).To(HaveLen(1))
			Expect(c.DocumentVerifications[0].Status).To(Equal(model.VerificationVerified))

			last := c.History[len(c.History)-1]
			Expect(last.Description).To(Equal("resume verified"))
			Expect(*last.PreviousStatus).To(Equal("rejected"))
		})

		It("reflects an update on read and leaves other records alone", func() {
			c, err := h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("id_card", -1, "rejected"))
			Expect(err).To(BeNil())
			before := time.Now().UTC()
			_, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("payslip", 0, "verified"))
			Expect(err).To(BeNil())

			got, err := h.svc.GetCase(context.TODO(), verifier1, c.ID)
			Expect(err).To(BeNil())
			Expect(got.DocumentVerifications).To(HaveLen(2))

			byType := map[string]model.DocumentVerification{}
			for _, dv := range got.DocumentVerifications {
				byType[dv.DocumentType] = dv
			}
			Expect(byType["payslip"].Status).To(Equal(model.VerificationVerified))
			Expect(byType["payslip"].VerifiedBy).To(Equal("ver-1"))
			Expect(byType["payslip"].VerifiedAt).To(BeTemporally("~", before, 5*time.Second))
			Expect(byType["id_card"].Status).To(Equal(model.VerificationRejected))
		})

		It("does not roll sub-records up into the case", func() {
			c, err := h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("resume", -1, "verified"))
			Expect(err).To(BeNil())
			Expect(c.DocumentStatus).To(Equal(model.VerificationPending))
			Expect(c.Status).To(Equal(model.CaseStatusAssigned))
		})

		It("forbids a verifier who does not hold the case", func() {
			_, err := h.svc.UpdateDocumentVerification(context.TODO(), verifier2, c.ID, documentForm("resume", -1, "verified"))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))

			_, err = h.svc.UpdateJobHistoryVerification(context.TODO(), verifier2, c.ID, mappers.JobHistoryVerificationForm{JobEntryIndex: 0, Status: "verified"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))
		})

		It("validates statuses and positions", func() {
			_, err := h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("resume", -1, "approved"))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidStatus{}))

			_, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("resume", -2, "verified"))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			_, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("diploma", -1, "verified"))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			_, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("payslip", 7, "verified"))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			_, err = h.svc.UpdateJobHistoryVerification(context.TODO(), verifier1, c.ID, mappers.JobHistoryVerificationForm{JobEntryIndex: 2, Status: "verified"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("records the stable id of the job entry and refuses retired entries", func() {
			entries, err := h.store.Employee().GetJobHistory(context.TODO(), "emp-1")
			Expect(err).To(BeNil())

			c, err := h.svc.UpdateJobHistoryVerification(context.TODO(), verifier1, c.ID, mappers.JobHistoryVerificationForm{JobEntryIndex: 1, Status: "verified"})
			Expect(err).To(BeNil())
			Expect(c.JobHistoryVerifications).To(HaveLen(1))
			Expect(*c.JobHistoryVerifications[0].JobEntryRef).To(Equal(entries[1].ID.String()))

			Expect(h.store.Employee().RetireJobEntry(context.TODO(), entries[0].ID)).To(Succeed())
			_, err = h.svc.UpdateJobHistoryVerification(context.TODO(), verifier1, c.ID, mappers.JobHistoryVerificationForm{JobEntryIndex: 0, Status: "verified"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			// positions after the retired entry do not shift
			c, err = h.svc.UpdateJobHistoryVerification(context.TODO(), verifier1, c.ID, mappers.JobHistoryVerificationForm{JobEntryIndex: 1, Status: "rejected"})
			Expect(err).To(BeNil())
			Expect(*c.JobHistoryVerifications[0].JobEntryRef).To(Equal(entries[1].ID.String()))
		})

		It("writes one history entry per accepted mutation", func() {
			Expect(c.History).To(HaveLen(2))

			var err error
			c, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("resume", -1, "verified"))
			Expect(err).To(BeNil())
			c, err = h.svc.UpdateJobHistoryVerification(context.TODO(), verifier1, c.ID, mappers.JobHistoryVerificationForm{JobEntryIndex: 0, Status: "verified"})
			Expect(err).To(BeNil())

			_, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier2, c.ID, documentForm("resume", -1, "rejected"))
			Expect(err).ToNot(BeNil())

			c, err = h.svc.GetCase(context.TODO(), admin, c.ID)
			Expect(err).To(BeNil())
			Expect(c.History).To(HaveLen(4))
			Expect(c.History[len(c.History)-1].Action).To(Equal(model.ActionJobHistoryVerification))
		})

		It("refuses changes on a closed case", func() {
			_, err := h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "rejected"})
			Expect(err).To(BeNil())

			_, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, documentForm("resume", -1, "verified"))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))
		})
	})

	Context("FinalizeRollups", func() {
		It("waits until no item is pending and then rolls up", func() {
			c := h.assignedCase("emp-1", model.CaseTypeDocumentVerification, "ver-1")

			_, err := h.svc.FinalizeRollups(context.TODO(), verifier1, c.ID, 0)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))

			c, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, mappers.DocumentVerificationForm{DocumentType: "resume", JobEntryIndex: -1, Status: "verified"})
			Expect(err).To(BeNil())
			c, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, mappers.DocumentVerificationForm{DocumentType: "id_card", JobEntryIndex: -1, Status: "pending"})
			Expect(err).To(BeNil())

			_, err = h.svc.FinalizeRollups(context.TODO(), verifier1, c.ID, 0)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))

			c, err = h.svc.UpdateDocumentVerification(context.TODO(), verifier1, c.ID, mappers.DocumentVerificationForm{DocumentType: "id_card", JobEntryIndex: -1, Status: "rejected"})
			Expect(err).To(BeNil())
			c, err = h.svc.UpdateJobHistoryVerification(context.TODO(), verifier1, c.ID, mappers.JobHistoryVerificationForm{JobEntryIndex: 0, Status: "verified"})
			Expect(err).To(BeNil())

			c, err = h.svc.FinalizeRollups(context.TODO(), verifier1, c.ID, c.Version)
			Expect(err).To(BeNil())
			Expect(c.DocumentStatus).To(Equal(model.VerificationRejected))
			Expect(c.JobHistoryStatus).To(Equal(model.VerificationVerified))
			Expect(c.History[len(c.History)-1].Action).To(Equal(model.ActionRollupsFinalized))
		})

		It("is not available to employers", func() {
			c := h.assignedCase("emp-1", model.CaseTypeDocumentVerification, "ver-1")
			_, err := h.svc.FinalizeRollups(context.TODO(), acmeBoss, c.ID, 0)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))
		})
	})

	Context("GetCase", func() {
		It("hides cases outside the caller's scope as not found", func() {
			c := h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")

			_, missingErr := h.svc.GetCase(context.TODO(), employee2, uuid.New())
			_, foreignErr := h.svc.GetCase(context.TODO(), employee2, c.ID)
			Expect(missingErr).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
			Expect(foreignErr).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			_, err := h.svc.GetCase(context.TODO(), globexBoss, c.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			_, err = h.svc.GetCase(context.TODO(), verifier2, c.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			for _, p := range []access.Principal{employee1, acmeBoss, verifier1, admin} {
				_, err := h.svc.GetCase(context.TODO(), p, c.ID)
				Expect(err).To(BeNil(), p.ID)
			}
		})

		It("caches snapshots and writes committed mutations through", func() {
			c := h.assignedCase("emp-1", model.CaseTypeProfileUpdate, "ver-1")

			before, err := h.svc.GetCase(context.TODO(), admin, c.ID)
			Expect(err).To(BeNil())
			cached, found := h.cache.Get(context.TODO(), c.ID)
			Expect(found).To(BeTrue())
			Expect(cached.Version).To(Equal(c.Version))

			_, err = h.svc.UpdateStatus(context.TODO(), verifier1, c.ID, mappers.StatusUpdateForm{Status: "in_progress"})
			Expect(err).To(BeNil())
			cached, found = h.cache.Get(context.TODO(), c.ID)
			Expect(found).To(BeTrue())
			Expect(cached.Version).To(Equal(c.Version + 1))
			Expect(cached.Status).To(Equal(model.CaseStatusInProgress))

			// a read that loaded the case before the commit writes back late
			h.cache.Set(context.TODO(), before)

			got, err := h.svc.GetCase(context.TODO(), verifier1, c.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.CaseStatusInProgress))
			Expect(got.Version).To(Equal(c.Version + 1))
			Expect(h.cache.Writes()).To(Equal([]int{c.Version - 1, c.Version, c.Version + 1}))
		})
	})
})
