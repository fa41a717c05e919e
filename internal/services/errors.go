package services

// Service error taxonomy. Every failure a service can produce is one of
// these; handlers convert them into the JSON result shape and nothing
// escapes past that boundary.

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

// ValidationError names the failing field(s). Mutations populate exactly
// one entry: the first constraint that failed.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for _, msg := range e.Fields {
		return msg
	}
	return "Validation error"
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// NotFoundError covers both absence and ownership failure; the two are
// deliberately indistinguishable so non-owners learn nothing.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// LimitReachedError is the free-plan deck cap.
type LimitReachedError struct{ Message string }

func (e *LimitReachedError) Error() string { return e.Message }

// UpgradeRequiredError is returned when a gated action needs an entitlement
// the user's plan does not grant.
type UpgradeRequiredError struct{ Message string }

func (e *UpgradeRequiredError) Error() string { return e.Message }

// UpstreamError kinds for the generation provider.
const (
	UpstreamCredential = "credential"
	UpstreamRateLimit  = "rate_limit"
	UpstreamGeneric    = "generic"
)

type UpstreamError struct {
	Kind    string
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }
