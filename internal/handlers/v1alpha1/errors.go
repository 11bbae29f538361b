package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	api "github.com/verifyhub/case-engine/api/v1alpha1"
	"github.com/verifyhub/case-engine/internal/service"
	"github.com/verifyhub/case-engine/pkg/requestid"
)

func statusFor(err error, pre precondition) int {
	var (
		notFound          *service.ErrResourceNotFound
		forbidden         *service.ErrForbidden
		conflict          *service.ErrConflict
		invalidTransition *service.ErrInvalidTransition
		invalidStatus     *service.ErrInvalidStatus
		validation        *service.ErrValidation
		invalidVerifier   *service.ErrInvalidVerifier
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &conflict):
		if pre.ifMatch && conflict.Stale() {
			return http.StatusPreconditionFailed
		}
		return http.StatusConflict
	case errors.As(err, &invalidTransition):
		return http.StatusConflict
	case errors.As(err, &invalidStatus), errors.As(err, &validation), errors.As(err, &invalidVerifier):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, pre precondition) {
	status := statusFor(err, pre)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	render.Status(r, status)
	render.JSON(w, r, api.Error{Message: message, RequestId: requestIDPtr(r)})
}

func requestIDPtr(r *http.Request) *string {
	id := requestid.FromRequest(r)
	if id == "" {
		return nil
	}
	return &id
}
