package models

// InvalidateResult reports a manual cache invalidation.
type InvalidateResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Removed int    `json:"removed_entries"`
}
