// Package categorize maps a normalized ticket onto a support level and an
// owning team. The decision logic is an ordered list of strategies evaluated
// until one yields a result, so each priority rule stays testable on its own.
package categorize

import (
	"strings"

	"github.com/spec-kit/support-reconciler/internal/config"
	"github.com/spec-kit/support-reconciler/internal/domain"
)

// Input carries the signals categorization reads.
type Input struct {
	Source     string
	GroupName  string
	Status     domain.StatusCode
	StatusText string
	LinkageRef string
}

// Result is a support level plus the team owning that tier.
type Result struct {
	Level domain.SupportLevel
	Team  string
}

// Strategy inspects the input and either claims it or passes.
type Strategy func(Input) (Result, bool)

// Engine evaluates strategies in priority order. Status is the most
// trustworthy L4 signal, group naming next, keyword matching last; only the
// status strategy may grant L4 to the service desk.
type Engine struct {
	strategies []Strategy
}

// NewEngine builds the engine from the externally supplied rules.
func NewEngine(rules *config.Rules) *Engine {
	return &Engine{
		strategies: []Strategy{
			helpdeskSource,
			trackerSource,
			awaitingEscalationStatus(rules.EscalationStatuses),
			groupMapping(rules.GroupLevels),
			technicalGroupKeywords,
			firstLineGroupKeywords,
		},
	}
}

// Categorize runs the cascade; the default for an unclaimed service-desk
// ticket is the L2 service-owner tier.
func (e *Engine) Categorize(in Input) Result {
	for _, strategy := range e.strategies {
		if result, ok := strategy(in); ok {
			return result
		}
	}
	return Result{Level: domain.LevelL2, Team: domain.TeamServiceOwners}
}

// TeamForLevel returns the default owning team of a tier.
func TeamForLevel(level domain.SupportLevel) string {
	switch level {
	case domain.LevelL1:
		return domain.TeamContactCenter
	case domain.LevelL2:
		return domain.TeamServiceOwners
	case domain.LevelL3:
		return domain.TeamAppSupport
	case domain.LevelL4:
		return domain.TeamDevelopers
	default:
		return domain.TeamUnknown
	}
}

// helpdeskSource pins every first-line ticket to L1. No exceptions.
func helpdeskSource(in Input) (Result, bool) {
	if in.Source != domain.SourceHelpdesk {
		return Result{}, false
	}
	return Result{Level: domain.LevelL1, Team: domain.TeamContactCenter}, true
}

// trackerSource pins every engineering-tracker item to L4.
func trackerSource(in Input) (Result, bool) {
	if in.Source != domain.SourceTracker {
		return Result{}, false
	}
	return Result{Level: domain.LevelL4, Team: domain.TeamDevelopers}, true
}

// awaitingEscalationStatus is the only path by which a service-desk ticket
// reaches L4: an explicit awaiting-engineering state.
func awaitingEscalationStatus(keywords []string) Strategy {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	return func(in Input) (Result, bool) {
		if in.Source != domain.SourceServiceDesk {
			return Result{}, false
		}
		if in.Status == domain.StatusAwaitingEscalation {
			return Result{Level: domain.LevelL4, Team: domain.TeamDevelopers}, true
		}
		status := strings.ToLower(in.StatusText)
		for _, kw := range lowered {
			if kw != "" && strings.Contains(status, kw) {
				return Result{Level: domain.LevelL4, Team: domain.TeamDevelopers}, true
			}
		}
		return Result{}, false
	}
}

// groupMapping applies the configured group-to-level table. A mapping to L4
// is clamped to L3: group naming alone must never grant the engineering tier.
func groupMapping(groupLevels map[string]domain.SupportLevel) Strategy {
	normalized := make(map[string]domain.SupportLevel, len(groupLevels))
	for group, level := range groupLevels {
		normalized[strings.ToLower(strings.TrimSpace(group))] = level
	}
	return func(in Input) (Result, bool) {
		if in.Source != domain.SourceServiceDesk || in.GroupName == "" {
			return Result{}, false
		}
		level, ok := normalized[strings.ToLower(strings.TrimSpace(in.GroupName))]
		if !ok {
			return Result{}, false
		}
		if level == domain.LevelL4 {
			level = domain.LevelL3
		}
		return Result{Level: level, Team: TeamForLevel(level)}, true
	}
}

var technicalKeywords = []string{
	"app", "dev", "engineer", "database", "dba", "network", "security",
	"infra", "platform", "sql", "backend", "integration",
}

var firstLineKeywords = []string{
	"helpdesk", "help desk", "contact center", "contact centre", "1st line", "first line",
}

// technicalGroupKeywords is the last-resort heuristic for technical queues.
func technicalGroupKeywords(in Input) (Result, bool) {
	if in.Source != domain.SourceServiceDesk || !containsAny(in.GroupName, technicalKeywords) {
		return Result{}, false
	}
	return Result{Level: domain.LevelL3, Team: domain.TeamAppSupport}, true
}

func firstLineGroupKeywords(in Input) (Result, bool) {
	if in.Source != domain.SourceServiceDesk || !containsAny(in.GroupName, firstLineKeywords) {
		return Result{}, false
	}
	return Result{Level: domain.LevelL1, Team: domain.TeamContactCenter}, true
}

func containsAny(s string, keywords []string) bool {
	lowered := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
