package domain

import "time"

// Source names for the three upstream ticket systems.
const (
	SourceHelpdesk    = "helpdesk"
	SourceServiceDesk = "servicedesk"
	SourceTracker     = "tracker"
)

// Owning teams assigned by categorization.
const (
	TeamContactCenter = "Contact Center"
	TeamServiceOwners = "Service Owners"
	TeamAppSupport    = "App Support"
	TeamDevelopers    = "Developers"
	TeamUnknown       = "Unknown"
)

// CanonicalRequest is the single reconciled record for one logical support
// request, keyed by (external_id, source). Never hard-deleted by the
// reconciliation path.
type CanonicalRequest struct {
	ID             int64
	ExternalID     string
	Source         string
	Title          string
	Description    string
	Status         StatusCode
	Priority       string
	Category       string
	RequesterEmail string
	Assignee       string
	SupportLevel   SupportLevel
	Team           string
	LinkageRef     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
}
