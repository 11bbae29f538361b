package events

// CaseEvent is embedded in every payload.
type CaseEvent struct {
	CaseID     string `json:"case_id"`
	EmployeeID string `json:"employee_id"`
	CaseType   string `json:"case_type"`
	Actor      string `json:"actor"`
	Version    int    `json:"version"`
}

type CaseCreatedEvent struct {
	CaseEvent
	Priority string `json:"priority"`
}

type CaseAssignedEvent struct {
	CaseEvent
	AssignedTo       string  `json:"assigned_to"`
	PreviousAssignee *string `json:"previous_assignee,omitempty"`
	// Mode is one of assign, claim or auto.
	Mode string `json:"mode"`
}

type StatusChangedEvent struct {
	CaseEvent
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	Notes          string `json:"notes,omitempty"`
}

type DocumentVerifiedEvent struct {
	CaseEvent
	DocumentType      string `json:"document_type"`
	JobEntryIndex     int    `json:"job_entry_index"`
	DocumentSlotIndex int    `json:"document_slot_index"`
	Status            string `json:"status"`
}

type JobEntryVerifiedEvent struct {
	CaseEvent
	JobEntryIndex int    `json:"job_entry_index"`
	Status        string `json:"status"`
}
