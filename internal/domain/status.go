package domain

// StatusCode is the normalized lifecycle status shared by all sources.
// Each adapter maps its raw source status into this table.
type StatusCode int

const (
	StatusOpen               StatusCode = 2
	StatusPending            StatusCode = 3
	StatusResolved           StatusCode = 4
	StatusClosed             StatusCode = 5
	StatusAwaitingEscalation StatusCode = 18
	StatusFrozen             StatusCode = 19
)

var statusNames = map[StatusCode]string{
	StatusOpen:               "Open",
	StatusPending:            "Pending",
	StatusResolved:           "Resolved",
	StatusClosed:             "Closed",
	StatusAwaitingEscalation: "AwaitingEscalation",
	StatusFrozen:             "Frozen",
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Known reports whether the code is part of the normalization table.
func (s StatusCode) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether the request reached an end state.
func (s StatusCode) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// CorroboratesEscalation reports whether the status backs up an L4
// classification: an explicit awaiting-escalation state or a terminal one.
func (s StatusCode) CorroboratesEscalation() bool {
	return s == StatusAwaitingEscalation || s.Terminal()
}

// NormalizeStatus maps a raw source code into the shared table. Codes outside
// the table fall back to Open so a record with a source-private status still
// reconciles.
func NormalizeStatus(code int) StatusCode {
	s := StatusCode(code)
	if s.Known() {
		return s
	}
	return StatusOpen
}
