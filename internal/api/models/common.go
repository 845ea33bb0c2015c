// Package models defines the request and response bodies of the DepotRadar
// API.
package models

import (
	"strconv"
	"time"
)

// HealthStatus is the status string on health responses.
type HealthStatus string

// HealthStatusOK is the status reported while the process is up. Readiness
// mirrors liveness; the service serves from cache when upstreams fail.
const HealthStatusOK HealthStatus = "OK"

// Envelope is the status/data wrapper the dashboard client expects on list
// and report endpoints.
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// Success wraps data in a success envelope.
func Success(data any) Envelope {
	return Envelope{Status: "success", Data: data}
}

// Timestamp marshals as whole-second RFC 3339 instead of Go's nanosecond
// default.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
