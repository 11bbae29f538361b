package v1alpha1

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	api "github.com/verifyhub/case-engine/api/v1alpha1"
	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/auth"
	"github.com/verifyhub/case-engine/internal/handlers/v1alpha1/mappers"
	"github.com/verifyhub/case-engine/internal/service"
	"github.com/verifyhub/case-engine/internal/store/model"
	"github.com/verifyhub/case-engine/pkg/log"
)

// (GET /api/v1/cases)
func (h *ServiceHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.NewDebugLogger("case_handler").WithContext(ctx).Operation("list_cases").Build()
	principal := auth.MustHavePrincipal(ctx)

	query := r.URL.Query()
	filter := service.NewCaseFilter().
		WithStatus(query.Get("status")).
		WithPriority(query.Get("priority")).
		WithCaseType(query.Get("caseType")).
		WithSearch(query.Get("search")).
		WithCursor(query.Get("after"))
	filter.Pool = query.Get("pool")

	for name, target := range map[string]*int{"page": &filter.Page, "pageSize": &filter.PageSize} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, service.NewErrValidation("invalid %s %q", name, raw), precondition{})
			return
		}
		*target = n
	}

	cases, total, err := h.caseSrv.ListCases(ctx, principal, filter)
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err, precondition{})
		return
	}

	page, pageSize := service.NormalizePage(filter.Page, filter.PageSize)
	logger.Success().WithInt("count", len(cases)).Log()
	render.JSON(w, r, mappers.CaseListToApi(cases, total, page, pageSize, service.NextCursor(cases, pageSize)))
}

// (POST /api/v1/cases)
func (h *ServiceHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.NewDebugLogger("case_handler").WithContext(ctx).Operation("create_case").Build()
	principal := auth.MustHavePrincipal(ctx)

	var body api.CaseCreate
	if err := h.decode(r, &body, false); err != nil {
		writeError(w, r, err, precondition{})
		return
	}

	c, err := h.caseSrv.CreateCase(ctx, principal, mappers.CaseCreateFormApi(body))
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err, precondition{})
		return
	}

	logger.Success().WithUUID("case_id", c.ID).Log()
	w.Header().Set("Location", fmt.Sprintf("/api/v1/cases/%s", c.ID))
	setETag(w, c.Version)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mappers.CaseToApi(*c))
}

// (GET /api/v1/cases/{id})
func (h *ServiceHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.NewDebugLogger("case_handler").WithContext(ctx).Operation("get_case").Build()
	principal := auth.MustHavePrincipal(ctx)

	id, err := caseID(r)
	if err != nil {
		writeError(w, r, err, precondition{})
		return
	}

	c, err := h.caseSrv.GetCase(ctx, principal, id)
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err, precondition{})
		return
	}

	logger.Success().WithInt("version", c.Version).Log()
	h.renderCase(w, r, c)
}

// (PUT /api/v1/cases/{id}/status)
func (h *ServiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	handleMutation(h, w, r, "update_status", false,
		func(b api.StatusUpdate) *int { return b.ExpectedVersion },
		func(ctx context.Context, principal access.Principal, id uuid.UUID, body api.StatusUpdate, version int) (*model.Case, error) {
			return h.caseSrv.UpdateStatus(ctx, principal, id, mappers.StatusUpdateFormApi(body, version))
		})
}

// (PUT /api/v1/cases/{id}/documents)
func (h *ServiceHandler) UpdateDocumentVerification(w http.ResponseWriter, r *http.Request) {
	handleMutation(h, w, r, "update_document_verification", false,
		func(b api.DocumentVerificationUpdate) *int { return b.ExpectedVersion },
		func(ctx context.Context, principal access.Principal, id uuid.UUID, body api.DocumentVerificationUpdate, version int) (*model.Case, error) {
			return h.caseSrv.UpdateDocumentVerification(ctx, principal, id, mappers.DocumentVerificationFormApi(body, version))
		})
}

// (PUT /api/v1/cases/{id}/job-history)
func (h *ServiceHandler) UpdateJobHistoryVerification(w http.ResponseWriter, r *http.Request) {
	handleMutation(h, w, r, "update_job_history_verification", false,
		func(b api.JobHistoryVerificationUpdate) *int { return b.ExpectedVersion },
		func(ctx context.Context, principal access.Principal, id uuid.UUID, body api.JobHistoryVerificationUpdate, version int) (*model.Case, error) {
			return h.caseSrv.UpdateJobHistoryVerification(ctx, principal, id, mappers.JobHistoryVerificationFormApi(body, version))
		})
}

// (POST /api/v1/cases/{id}/assign)
func (h *ServiceHandler) Assign(w http.ResponseWriter, r *http.Request) {
	handleMutation(h, w, r, "assign_case", false,
		func(b api.CaseAssignment) *int { return b.ExpectedVersion },
		func(ctx context.Context, principal access.Principal, id uuid.UUID, body api.CaseAssignment, version int) (*model.Case, error) {
			return h.caseSrv.Assign(ctx, principal, id, body.VerifierId, version)
		})
}

// (POST /api/v1/cases/{id}/claim)
func (h *ServiceHandler) Claim(w http.ResponseWriter, r *http.Request) {
	handleMutation(h, w, r, "claim_case", true,
		func(b api.VersionedRequest) *int { return b.ExpectedVersion },
		func(ctx context.Context, principal access.Principal, id uuid.UUID, _ api.VersionedRequest, version int) (*model.Case, error) {
			return h.caseSrv.Claim(ctx, principal, id, version)
		})
}

// (POST /api/v1/cases/{id}/auto-assign)
func (h *ServiceHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	handleMutation(h, w, r, "auto_assign_case", true,
		func(b api.VersionedRequest) *int { return b.ExpectedVersion },
		func(ctx context.Context, principal access.Principal, id uuid.UUID, _ api.VersionedRequest, version int) (*model.Case, error) {
			return h.caseSrv.AutoAssign(ctx, principal, id, version)
		})
}

// (POST /api/v1/cases/{id}/finalize)
func (h *ServiceHandler) FinalizeRollups(w http.ResponseWriter, r *http.Request) {
	handleMutation(h, w, r, "finalize_rollups", true,
		func(b api.VersionedRequest) *int { return b.ExpectedVersion },
		func(ctx context.Context, principal access.Principal, id uuid.UUID, _ api.VersionedRequest, version int) (*model.Case, error) {
			return h.caseSrv.FinalizeRollups(ctx, principal, id, version)
		})
}

// handleMutation decodes a body of type T, merges its expectedVersion with
// If-Match and renders the mutated case.
func handleMutation[T any](
	h *ServiceHandler,
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	optionalBody bool,
	versionOf func(T) *int,
	call func(ctx context.Context, principal access.Principal, id uuid.UUID, body T, version int) (*model.Case, error),
) {
	ctx := r.Context()
	logger := log.NewDebugLogger("case_handler").WithContext(ctx).Operation(operation).Build()
	principal := auth.MustHavePrincipal(ctx)

	id, err := caseID(r)
	if err != nil {
		writeError(w, r, err, precondition{})
		return
	}

	var body T
	if err := h.decode(r, &body, optionalBody); err != nil {
		writeError(w, r, err, precondition{})
		return
	}

	pre, err := expectedVersion(r, versionOf(body))
	if err != nil {
		writeError(w, r, err, precondition{})
		return
	}

	c, err := call(ctx, principal, id, body, pre.version)
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err, pre)
		return
	}

	logger.Success().WithUUID("case_id", c.ID).WithInt("version", c.Version).Log()
	h.renderCase(w, r, c)
}

func (h *ServiceHandler) renderCase(w http.ResponseWriter, r *http.Request, c *model.Case) {
	setETag(w, c.Version)
	render.JSON(w, r, mappers.CaseToApi(*c))
}
