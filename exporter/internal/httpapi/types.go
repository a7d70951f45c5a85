package httpapi

import "time"

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status      string     `json:"status"` // ok | unresolved
	Resource    string     `json:"resource"`
	ResourceID  uint32     `json:"resource_id,omitempty"`
	Resolved    bool       `json:"resolved"`
	LastScrape  *time.Time `json:"last_scrape,omitempty"`
	FailedSteps int        `json:"failed_steps"`
}

type errorResponse struct {
	Error string `json:"error"`
}
