package api

// --- Error envelopes ---

// ErrorResponse is the generic error envelope.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// InternalErrorResponse is returned for unexpected failures. ErrorType
// names the concrete Go error type for debugging.
type InternalErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorType string `json:"error_type"`
}

// --- Service surface ---

// BannerResponse is the liveness banner returned from the root path.
type BannerResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthCheck reports the health of a single component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the aggregate health report.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// --- Mutation acknowledgements ---

// StepAppendResponse acknowledges a recorded step with the running total.
type StepAppendResponse struct {
	Status     string `json:"status"`
	TotalSteps int    `json:"total_steps"`
}

// CompleteResponse acknowledges a completed session.
type CompleteResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// DeleteResponse acknowledges a deleted session or registry entry.
type DeleteResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// StepDeleteResponse acknowledges a deleted step with the count of steps
// left in the session.
type StepDeleteResponse struct {
	OK        bool `json:"ok"`
	Remaining int  `json:"remaining"`
}

// ConfigUpdateResponse reports which keys a config update applied and the
// resulting configuration.
type ConfigUpdateResponse struct {
	Status      string         `json:"status"`
	UpdatedKeys []string       `json:"updated_keys"`
	Config      map[string]any `json:"config"`
}
