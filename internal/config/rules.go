package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/support-reconciler/internal/domain"
)

// Project describes one engineering-tracker project and the team behind it.
type Project struct {
	Name string `yaml:"name"`
	Team string `yaml:"team"`
}

// Rules is the externally supplied mapping configuration: group-name to level,
// awaiting-escalation status keywords, tracker project prefix to team, the
// custom field carrying an explicit linkage reference, and the service-desk
// group holding engineering-adjacent items.
type Rules struct {
	GroupLevels        map[string]domain.SupportLevel `yaml:"group_levels"`
	EscalationStatuses []string                       `yaml:"escalation_statuses"`
	Projects           map[string]Project             `yaml:"projects"`
	LinkageField       string                         `yaml:"linkage_field"`
	OrphanGroup        string                         `yaml:"orphan_group"`
}

// LoadRules reads and validates the YAML rules file.
func LoadRules(path string) (*Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	for group, level := range rules.GroupLevels {
		if !level.Valid() {
			return nil, fmt.Errorf("rules file %s: group %q maps to invalid level %q", path, group, level)
		}
	}
	if rules.LinkageField == "" {
		rules.LinkageField = "linked_issue"
	}
	if rules.OrphanGroup == "" {
		rules.OrphanGroup = "Engineering Escalations"
	}

	// Prefixes are matched against uppercase tracker keys.
	normalized := make(map[string]Project, len(rules.Projects))
	for prefix, project := range rules.Projects {
		normalized[strings.ToUpper(strings.TrimSpace(prefix))] = project
	}
	rules.Projects = normalized

	return &rules, nil
}

// TeamForPrefix resolves the owning team of a tracker key prefix.
func (r *Rules) TeamForPrefix(prefix string) (string, bool) {
	project, ok := r.Projects[strings.ToUpper(prefix)]
	if !ok || project.Team == "" {
		return "", false
	}
	return project.Team, true
}

// KnownPrefix reports whether the prefix belongs to a configured project.
func (r *Rules) KnownPrefix(prefix string) bool {
	_, ok := r.Projects[strings.ToUpper(prefix)]
	return ok
}
