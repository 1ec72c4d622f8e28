package domain

import "time"

// Movement is an immutable record of an upward support-level transition for
// one canonical request.
type Movement struct {
	ID         int64
	RequestID  int64
	ExternalID string
	Source     string
	FromLevel  SupportLevel
	ToLevel    SupportLevel
	FromStatus StatusCode
	ToStatus   StatusCode
	ChangedBy  string
	OccurredAt time.Time
}
