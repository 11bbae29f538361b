package mappers

import (
	api "github.com/verifyhub/case-engine/api/v1alpha1"
	"github.com/verifyhub/case-engine/internal/service/mappers"
)

func CaseCreateFormApi(body api.CaseCreate) mappers.CaseCreateForm {
	form := mappers.CaseCreateForm{
		EmployeeID: body.EmployeeId,
		CaseType:   body.CaseType,
	}
	if body.Priority != nil {
		form.Priority = *body.Priority
	}
	return form
}

func StatusUpdateFormApi(body api.StatusUpdate, expectedVersion int) mappers.StatusUpdateForm {
	return mappers.StatusUpdateForm{
		Status:          body.Status,
		Notes:           value(body.Notes),
		ExpectedVersion: expectedVersion,
	}
}

func DocumentVerificationFormApi(body api.DocumentVerificationUpdate, expectedVersion int) mappers.DocumentVerificationForm {
	return mappers.DocumentVerificationForm{
		DocumentType:      body.DocumentType,
		JobEntryIndex:     body.JobEntryIndex,
		DocumentSlotIndex: body.DocumentSlotIndex,
		Status:            body.Status,
		Notes:             value(body.Notes),
		ExpectedVersion:   expectedVersion,
	}
}

func JobHistoryVerificationFormApi(body api.JobHistoryVerificationUpdate, expectedVersion int) mappers.JobHistoryVerificationForm {
	return mappers.JobHistoryVerificationForm{
		JobEntryIndex:   body.JobEntryIndex,
		Status:          body.Status,
		Notes:           value(body.Notes),
		ExpectedVersion: expectedVersion,
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
