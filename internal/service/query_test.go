package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/service"
	"github.com/verifyhub/case-engine/internal/service/mappers"
	"github.com/verifyhub/case-engine/internal/store/model"
)

var _ = Describe("ListCases", func() {
	var (
		h         *harness
		unheld    *model.Case
		heldByOne *model.Case
		heldByTwo *model.Case
		globex    *model.Case
	)

	ids := func(list model.CaseList) []string {
		out := make([]string, 0, len(list))
		for _, c := range list {
			out = append(out, c.ID.String())
		}
		return out
	}

	BeforeEach(func() {
		h = newHarness()
		unheld = h.createCase("emp-1", model.CaseTypeProfileUpdate)
		heldByOne = h.assignedCase("emp-1", model.CaseTypeJobHistory, "ver-1")
		heldByTwo = h.assignedCase("emp-1", model.CaseTypeDocumentVerification, "ver-2")
		globex = h.createCase("emp-2", model.CaseTypeJobHistory)
	})

	It("shows admins everything, newest first", func() {
		list, total, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter())
		Expect(err).To(BeNil())
		Expect(total).To(BeNumerically("==", 4))
		Expect(list).To(HaveLen(4))
		for i := 1; i < len(list); i++ {
			Expect(list[i-1].CreatedAt.Before(list[i].CreatedAt)).To(BeFalse())
		}
	})

	It("scopes each role to what it may read", func() {
		list, _, err := h.svc.ListCases(context.TODO(), employee2, service.NewCaseFilter())
		Expect(err).To(BeNil())
		Expect(ids(list)).To(ConsistOf(globex.ID.String()))

		list, _, err = h.svc.ListCases(context.TODO(), acmeBoss, service.NewCaseFilter())
		Expect(err).To(BeNil())
		Expect(ids(list)).To(ConsistOf(unheld.ID.String(), heldByOne.ID.String(), heldByTwo.ID.String()))

		list, _, err = h.svc.ListCases(context.TODO(), verifier1, service.NewCaseFilter())
		Expect(err).To(BeNil())
		Expect(ids(list)).To(ConsistOf(heldByOne.ID.String()))

		list, _, err = h.svc.ListCases(context.TODO(), verifier1, service.NewCaseFilter().WithUnassignedPool())
		Expect(err).To(BeNil())
		Expect(ids(list)).To(ConsistOf(unheld.ID.String(), globex.ID.String()))
	})

	It("shows nothing to an employer without an organization", func() {
		orphan := access.Principal{ID: "boss-none", Role: model.RoleEmployer}
		list, total, err := h.svc.ListCases(context.TODO(), orphan, service.NewCaseFilter())
		Expect(err).To(BeNil())
		Expect(list).To(BeEmpty())
		Expect(total).To(BeZero())
	})

	It("refuses unknown roles", func() {
		stranger := access.Principal{ID: "who", Role: model.Role("auditor")}
		_, _, err := h.svc.ListCases(context.TODO(), stranger, service.NewCaseFilter())
		Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))
	})

	It("filters by status, priority, type and search", func() {
		list, _, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithStatus("assigned"))
		Expect(err).To(BeNil())
		Expect(ids(list)).To(ConsistOf(heldByOne.ID.String(), heldByTwo.ID.String()))

		list, _, err = h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithCaseType("job_history"))
		Expect(err).To(BeNil())
		Expect(ids(list)).To(ConsistOf(heldByOne.ID.String(), globex.ID.String()))

		list, _, err = h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPriority("high"))
		Expect(err).To(BeNil())
		Expect(list).To(HaveLen(4))

		list, _, err = h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithSearch("SCORPIO"))
		Expect(err).To(BeNil())
		Expect(ids(list)).To(ConsistOf(globex.ID.String()))

		list, _, err = h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithSearch("acme.io"))
		Expect(err).To(BeNil())
		Expect(list).To(HaveLen(3))
	})

	It("rejects unknown filter values", func() {
		_, _, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithStatus("archived"))
		Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidStatus{}))

		_, _, err = h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPriority("asap"))
		Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

		_, _, err = h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithCaseType("audit"))
		Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

		f := service.NewCaseFilter()
		f.Pool = "mine"
		_, _, err = h.svc.ListCases(context.TODO(), admin, f)
		Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
	})

	It("pages through the results and reports the full total", func() {
		first, total, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPage(1, 3))
		Expect(err).To(BeNil())
		Expect(total).To(BeNumerically("==", 4))
		Expect(first).To(HaveLen(3))

		second, total, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPage(2, 3))
		Expect(err).To(BeNil())
		Expect(total).To(BeNumerically("==", 4))
		Expect(second).To(HaveLen(1))
		Expect(ids(first)).ToNot(ContainElement(second[0].ID.String()))

		// out of range values are clamped
		clamped, _, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPage(0, 0))
		Expect(err).To(BeNil())
		Expect(clamped).To(HaveLen(4))
	})

	It("keeps later pages stable when cases are created in between", func() {
		first, _, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPage(1, 2))
		Expect(err).To(BeNil())
		Expect(first).To(HaveLen(2))
		cursor := service.NextCursor(first, 2)
		Expect(cursor).ToNot(BeEmpty())

		newest := h.createCase("emp-2", model.CaseTypeDocumentVerification)

		second, total, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPage(2, 2).WithCursor(cursor))
		Expect(err).To(BeNil())
		Expect(total).To(BeNumerically("==", 5))
		Expect(second).To(HaveLen(2))
		for _, id := range ids(second) {
			Expect(ids(first)).ToNot(ContainElement(id))
		}
		Expect(ids(second)).ToNot(ContainElement(newest.ID.String()))
		Expect(append(ids(first), ids(second)...)).To(ConsistOf(
			unheld.ID.String(), heldByOne.ID.String(), heldByTwo.ID.String(), globex.ID.String(),
		))
	})

	It("walks cases sharing a creation time without gaps or repeats", func() {
		fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
		svc := service.NewCaseService(h.store, service.WithClock(func() time.Time { return fixed }))
		for i := 0; i < 3; i++ {
			_, err := svc.CreateCase(context.TODO(), admin, mappers.CaseCreateForm{EmployeeID: "emp-2", CaseType: "job_history"})
			Expect(err).To(BeNil())
		}

		all, total, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithPage(1, 10))
		Expect(err).To(BeNil())
		Expect(total).To(BeNumerically("==", 7))

		var walked model.CaseList
		filter := service.NewCaseFilter().WithPage(1, 2)
		for {
			page, _, err := h.svc.ListCases(context.TODO(), admin, filter)
			Expect(err).To(BeNil())
			walked = append(walked, page...)

			next := service.NextCursor(page, 2)
			if next == "" {
				break
			}
			filter = service.NewCaseFilter().WithPage(1, 2).WithCursor(next)
		}
		Expect(ids(walked)).To(Equal(ids(all)))
	})

	It("rejects malformed cursors", func() {
		for _, cursor := range []string{"%%%", "bm90LWEtY3Vyc29y", "MTIzfG5vdC1hLXV1aWQ"} {
			_, _, err := h.svc.ListCases(context.TODO(), admin, service.NewCaseFilter().WithCursor(cursor))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}), cursor)
		}
	})
})
