package model

// CaseStats feeds the prometheus collector.
type CaseStats struct {
	TotalByStatus  map[string]int64
	OpenByVerifier map[string]int64
}
