package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/verifyhub/case-engine/internal/store/model"
)

var (
	principalIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._@-]{0,254}$`)
)

func principalIDValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return principalIDRegex.MatchString(val)
}

func caseTypeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	switch model.CaseType(val) {
	case model.CaseTypeProfileUpdate, model.CaseTypeJobHistory, model.CaseTypeDocumentVerification:
		return true
	default:
		return false
	}
}

func priorityValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Addr().Interface().(*string)
	if !ok {
		return false
	}

	if val == nil {
		return true
	}

	switch model.Priority(*val) {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent:
		return true
	default:
		return false
	}
}
