package domain

import "time"

// Escalation is a validated movement promoted into the governance ledger.
// ToLevel holds the validated target, which may differ from the movement's
// recorded target when L4 lacked status corroboration.
type Escalation struct {
	ID         int64
	RequestID  int64
	FromLevel  SupportLevel
	ToLevel    SupportLevel
	OccurredAt time.Time
	CreatedAt  time.Time
}
