package v1alpha1

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/handlers/validator"
	"github.com/verifyhub/case-engine/internal/service"
)

type ServiceHandler struct {
	caseSrv   *service.CaseService
	validator *validator.Validator
}

func NewServiceHandler(caseService *service.CaseService) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewCaseValidationRules()...)

	return &ServiceHandler{
		caseSrv:   caseService,
		validator: v,
	}
}

// Routes mounts the case API on r. Authentication is expected to run before it.
func (h *ServiceHandler) Routes(r chi.Router) {
	r.Route("/api/v1/cases", func(r chi.Router) {
		r.Get("/", h.ListCases)
		r.Post("/", h.CreateCase)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCase)
			r.Put("/status", h.UpdateStatus)
			r.Put("/documents", h.UpdateDocumentVerification)
			r.Put("/job-history", h.UpdateJobHistoryVerification)
			r.Post("/assign", h.Assign)
			r.Post("/claim", h.Claim)
			r.Post("/auto-assign", h.AutoAssign)
			r.Post("/finalize", h.FinalizeRollups)
		})
	})
}

func caseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, service.NewErrValidation("invalid case id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// decode reads a JSON body into v and validates it. An empty body is
// accepted only when optional is set.
func (h *ServiceHandler) decode(r *http.Request, v any, optional bool) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return service.NewErrValidation("failed to decode request body: %v", err)
	}
	if err := h.validator.Struct(v); err != nil {
		return service.NewErrValidation("%s", validator.Message(err))
	}
	return nil
}
