package models

// Health is the body of the liveness and readiness probes. Details
// carries build identifiers so a deployment can be told apart from the
// probe output alone.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}
