package models

// WebhookPing is the notification Airtable sends when base data changes.
// Only the identifiers are read; the payload carries no record data.
type WebhookPing struct {
	Base struct {
		ID string `json:"id"`
	} `json:"base"`
	Webhook struct {
		ID string `json:"id"`
	} `json:"webhook"`
	Timestamp string `json:"timestamp"`
}

// WebhookAck confirms receipt of an upstream change notification.
type WebhookAck struct {
	Status  string `json:"status"`
	Removed int    `json:"removed_entries"`
}
