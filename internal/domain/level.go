package domain

// SupportLevel is the ordinal escalation tier of a request.
type SupportLevel string

const (
	LevelL1 SupportLevel = "L1"
	LevelL2 SupportLevel = "L2"
	LevelL3 SupportLevel = "L3"
	LevelL4 SupportLevel = "L4"
)

var levelRanks = map[SupportLevel]int{
	LevelL1: 1,
	LevelL2: 2,
	LevelL3: 3,
	LevelL4: 4,
}

// Rank returns the numeric position of the level; 0 for unknown values.
func (l SupportLevel) Rank() int {
	return levelRanks[l]
}

// Valid reports whether the level is one of L1..L4.
func (l SupportLevel) Valid() bool {
	return l.Rank() > 0
}

// MaxLevel returns whichever level ranks higher. Used by the reconciliation
// ratchet: a stored level never decreases across syncs.
func MaxLevel(a, b SupportLevel) SupportLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// LegalEscalation reports whether (from, to) is a permitted escalation pair.
// The legal set is every strictly increasing pair of valid levels.
func LegalEscalation(from, to SupportLevel) bool {
	return from.Valid() && to.Valid() && to.Rank() > from.Rank()
}
