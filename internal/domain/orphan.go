package domain

import "time"

// OrphanIncident is an engineering-side item with no canonical linkage yet.
// It acts as a provisional surrogate until a linkage reference resolves.
// Team may be curated by hand; a re-run must never overwrite a resolved team
// with Unknown.
type OrphanIncident struct {
	ID                int64
	IncidentKey       string
	Title             string
	Team              string
	LinkageRef        *string
	LinkedStatus      string
	Status            StatusCode
	ReassignedToLevel *SupportLevel
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
	UpdatedAt         time.Time
}

// TeamResolved reports whether the incident carries a real team assignment.
func (o OrphanIncident) TeamResolved() bool {
	return o.Team != "" && o.Team != TeamUnknown && o.Team != "Unassigned"
}
