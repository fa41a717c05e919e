package models

// APIError is the wire shape for every failure the API reports.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Success         bool     `json:"success"`
	Error           APIError `json:"error"`
	LimitReached    bool     `json:"limit_reached,omitempty"`
	RequiresUpgrade bool     `json:"requires_upgrade,omitempty"`
}
