package models

// PrecacheRunResult reports the outcome of a coverage precache batch,
// one status per radius.
type PrecacheRunResult struct {
	Results     map[string]string `json:"results"`
	CompletedAt string            `json:"completed_at"`
}

// PrecacheLastRun reports when the insights precache last completed.
type PrecacheLastRun struct {
	LastPrecacheTimestamp string `json:"lastPrecacheTimestamp"`
}
