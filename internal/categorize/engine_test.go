package categorize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-reconciler/internal/config"
	"github.com/spec-kit/support-reconciler/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(&config.Rules{
		GroupLevels: map[string]domain.SupportLevel{
			"Contact Center":  domain.LevelL1,
			"Major Incidents": domain.LevelL2,
			"App Support":     domain.LevelL3,
			"Engineering Ops": domain.LevelL4,
		},
		EscalationStatuses: []string{"awaiting escalation", "awaiting engineering"},
	})
}

func TestCategorizeHelpdeskAlwaysL1(t *testing.T) {
	engine := newTestEngine()

	// Even a technical-sounding queue or an escalation status on the helpdesk
	// stays first line.
	result := engine.Categorize(Input{
		Source:     domain.SourceHelpdesk,
		GroupName:  "Database Engineering",
		Status:     domain.StatusAwaitingEscalation,
		StatusText: "Awaiting Escalation",
	})
	assert.Equal(t, domain.LevelL1, result.Level)
	assert.Equal(t, domain.TeamContactCenter, result.Team)
}

func TestCategorizeTrackerAlwaysL4(t *testing.T) {
	engine := newTestEngine()

	result := engine.Categorize(Input{Source: domain.SourceTracker, GroupName: "Contact Center"})
	assert.Equal(t, domain.LevelL4, result.Level)
	assert.Equal(t, domain.TeamDevelopers, result.Team)
}

func TestCategorizeEscalationStatusBeatsGroupMapping(t *testing.T) {
	engine := newTestEngine()

	// Status code path.
	result := engine.Categorize(Input{
		Source:    domain.SourceServiceDesk,
		GroupName: "Contact Center",
		Status:    domain.StatusAwaitingEscalation,
	})
	assert.Equal(t, domain.LevelL4, result.Level)
	assert.Equal(t, domain.TeamDevelopers, result.Team)

	// Status keyword path, case-insensitive.
	result = engine.Categorize(Input{
		Source:     domain.SourceServiceDesk,
		GroupName:  "Contact Center",
		Status:     domain.StatusPending,
		StatusText: "Awaiting ENGINEERING review",
	})
	assert.Equal(t, domain.LevelL4, result.Level)
}

func TestCategorizeGroupMapping(t *testing.T) {
	engine := newTestEngine()

	cases := []struct {
		group string
		want  domain.SupportLevel
	}{
		{"Contact Center", domain.LevelL1},
		{"Major Incidents", domain.LevelL2},
		{"App Support", domain.LevelL3},
		{"  app support  ", domain.LevelL3},
	}
	for _, tc := range cases {
		result := engine.Categorize(Input{Source: domain.SourceServiceDesk, GroupName: tc.group})
		assert.Equal(t, tc.want, result.Level, "group %q", tc.group)
		assert.Equal(t, TeamForLevel(tc.want), result.Team, "group %q", tc.group)
	}
}

func TestCategorizeGroupMappingClampsL4ToL3(t *testing.T) {
	engine := newTestEngine()

	result := engine.Categorize(Input{Source: domain.SourceServiceDesk, GroupName: "Engineering Ops"})
	assert.Equal(t, domain.LevelL3, result.Level)
	assert.Equal(t, domain.TeamAppSupport, result.Team)
}

func TestCategorizeKeywordFallbacks(t *testing.T) {
	engine := newTestEngine()

	technical := engine.Categorize(Input{Source: domain.SourceServiceDesk, GroupName: "SQL Server DBA Team"})
	assert.Equal(t, domain.LevelL3, technical.Level)
	assert.Equal(t, domain.TeamAppSupport, technical.Team)

	firstLine := engine.Categorize(Input{Source: domain.SourceServiceDesk, GroupName: "1st Line Walk-Up"})
	assert.Equal(t, domain.LevelL1, firstLine.Level)
	assert.Equal(t, domain.TeamContactCenter, firstLine.Team)
}

func TestCategorizeDefaultIsL2(t *testing.T) {
	engine := newTestEngine()

	result := engine.Categorize(Input{Source: domain.SourceServiceDesk, GroupName: "Facilities"})
	assert.Equal(t, domain.LevelL2, result.Level)
	assert.Equal(t, domain.TeamServiceOwners, result.Team)

	result = engine.Categorize(Input{Source: domain.SourceServiceDesk})
	assert.Equal(t, domain.LevelL2, result.Level)
}
