package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewCaseValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("principal_id", principalIDValidator),
		},
		{
			Rule: registerFn("case_type", caseTypeValidator),
		},
		{
			Rule: registerFn("priority", priorityValidator),
		},
	}
}
