package model

// SweepFailure records a single lead whose evaluation failed during a sweep.
type SweepFailure struct {
	LeadID string `json:"lead_id"`
	Error  string `json:"error"`
}

// SweepSummary reports the outcome of a decay sweep.
type SweepSummary struct {
	Evaluated    int            `json:"evaluated"`
	Transitioned int            `json:"transitioned"`
	Failed       []SweepFailure `json:"failed,omitempty"`
}
