package mappers

import (
	api "github.com/verifyhub/case-engine/api/v1alpha1"
	"github.com/verifyhub/case-engine/internal/store/model"
)

func CaseToApi(c model.Case) api.Case {
	out := api.Case{
		Id:                      c.ID,
		EmployeeId:              c.EmployeeID,
		CaseType:                string(c.CaseType),
		Status:                  string(c.Status),
		ProfileStatus:           string(c.ProfileStatus),
		JobHistoryStatus:        string(c.JobHistoryStatus),
		DocumentStatus:          string(c.DocumentStatus),
		Priority:                string(c.Priority),
		AssignedTo:              c.AssignedTo,
		AssignedBy:              c.AssignedBy,
		AssignedAt:              c.AssignedAt,
		Version:                 c.Version,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
		DocumentVerifications:   make([]api.DocumentVerification, 0, len(c.DocumentVerifications)),
		JobHistoryVerifications: make([]api.JobHistoryVerification, 0, len(c.JobHistoryVerifications)),
		History:                 make([]api.HistoryEntry, 0, len(c.History)),
	}

	for _, dv := range c.DocumentVerifications {
		out.DocumentVerifications = append(out.DocumentVerifications, api.DocumentVerification{
			DocumentType:      dv.DocumentType,
			JobEntryIndex:     dv.JobEntryIndex,
			DocumentSlotIndex: dv.DocumentSlotIndex,
			DocumentRef:       dv.DocumentRef,
			Status:            string(dv.Status),
			VerifiedBy:        dv.VerifiedBy,
			VerifiedAt:        dv.VerifiedAt,
			Notes:             dv.Notes,
		})
	}

	for _, jv := range c.JobHistoryVerifications {
		out.JobHistoryVerifications = append(out.JobHistoryVerifications, api.JobHistoryVerification{
			JobEntryIndex: jv.JobEntryIndex,
			JobEntryRef:   jv.JobEntryRef,
			Status:        string(jv.Status),
			VerifiedBy:    jv.VerifiedBy,
			VerifiedAt:    jv.VerifiedAt,
			Notes:         jv.Notes,
		})
	}

	for _, h := range c.History {
		out.History = append(out.History, api.HistoryEntry{
			Sequence:       h.Sequence,
			Action:         string(h.Action),
			Description:    h.Description,
			PerformedBy:    h.PerformedBy,
			Timestamp:      h.Timestamp,
			PreviousStatus: h.PreviousStatus,
			NewStatus:      h.NewStatus,
		})
	}

	return out
}

func CaseListToApi(cases model.CaseList, total int64, page, pageSize int, nextCursor string) api.CaseList {
	out := api.CaseList{
		Cases:    make([]api.CaseSummary, 0, len(cases)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	if nextCursor != "" {
		out.NextCursor = &nextCursor
	}
	for _, c := range cases {
		out.Cases = append(out.Cases, api.CaseSummary{
			Id:         c.ID,
			EmployeeId: c.EmployeeID,
			CaseType:   string(c.CaseType),
			Status:     string(c.Status),
			Priority:   string(c.Priority),
			AssignedTo: c.AssignedTo,
			Version:    c.Version,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}
