// Package linkage finds the engineering-tracker reference hiding inside a
// service-desk ticket. Strategies run in confidence order and stop at the
// first candidate that survives validation against the tracker.
package linkage

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/adapter"
	"github.com/spec-kit/support-reconciler/internal/config"
)

// Ticket is the view of a service-desk ticket the resolver reads.
type Ticket struct {
	ExternalID   string
	Title        string
	Description  string
	CustomFields map[string]string
}

// keyPattern matches tracker keys: 2-10 uppercase characters, hyphen, digits.
var keyPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})-(\d+)\b`)

// denylist holds prefixes that look like tracker keys but are technical
// artifacts: encodings, protocol versions, vulnerability identifiers.
var denylist = map[string]struct{}{
	"UTF":   {},
	"ISO":   {},
	"CVE":   {},
	"RFC":   {},
	"SHA":   {},
	"MD":    {},
	"TLS":   {},
	"SSL":   {},
	"AES":   {},
	"HTTP":  {},
	"OAUTH": {},
	"BASE":  {},
}

const verifyCacheTTL = 24 * time.Hour

// Strategy produces candidate keys from one signal. Candidates still have to
// pass validation; an empty slice just moves the cascade along.
type Strategy struct {
	Name       string
	Candidates func(ctx context.Context, ticket Ticket) ([]string, error)
}

// Resolver runs the strategy cascade. The service desk and cache are
// optional; missing collaborators skip their strategies rather than fail.
type Resolver struct {
	rules   *config.Rules
	tracker adapter.Tracker
	desk    adapter.ServiceDesk
	cache   *redis.Client
	logger  *zap.Logger

	strategies []Strategy
}

// Dependencies bundles resolver collaborators.
type Dependencies struct {
	Rules   *config.Rules
	Tracker adapter.Tracker
	Desk    adapter.ServiceDesk
	Cache   *redis.Client
	Logger  *zap.Logger
}

// NewResolver constructs the resolver with the full cascade.
func NewResolver(deps Dependencies) *Resolver {
	r := &Resolver{
		rules:   deps.Rules,
		tracker: deps.Tracker,
		desk:    deps.Desk,
		cache:   deps.Cache,
		logger:  deps.Logger,
	}
	r.strategies = []Strategy{
		{Name: "custom_field", Candidates: r.fromCustomField},
		{Name: "text_scan", Candidates: r.fromText},
		{Name: "conversation_scan", Candidates: r.fromConversations},
		{Name: "tracker_search", Candidates: r.fromTrackerSearch},
		{Name: "title_fuzzy", Candidates: r.fromTitleFuzzy},
	}
	return r
}

// Resolve returns the first validated tracker key for the ticket. Unverified
// candidates are discarded and the cascade continues.
func (r *Resolver) Resolve(ctx context.Context, ticket Ticket) (string, bool) {
	for _, strategy := range r.strategies {
		candidates, err := strategy.Candidates(ctx, ticket)
		if err != nil {
			r.logger.Warn("linkage strategy failed",
				zap.String("strategy", strategy.Name),
				zap.String("ticket", ticket.ExternalID),
				zap.Error(err))
			continue
		}
		for _, candidate := range candidates {
			if r.validate(ctx, candidate) {
				r.logger.Debug("linkage resolved",
					zap.String("strategy", strategy.Name),
					zap.String("ticket", ticket.ExternalID),
					zap.String("key", candidate))
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Resolver) fromCustomField(_ context.Context, ticket Ticket) ([]string, error) {
	raw, ok := ticket.CustomFields[r.rules.LinkageField]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return extractKeys(strings.ToUpper(strings.TrimSpace(raw))), nil
}

func (r *Resolver) fromText(_ context.Context, ticket Ticket) ([]string, error) {
	return extractKeys(ticket.Title + "\n" + ticket.Description), nil
}

func (r *Resolver) fromConversations(ctx context.Context, ticket Ticket) ([]string, error) {
	if r.desk == nil {
		return nil, nil
	}
	conversations, err := r.desk.ListConversations(ctx, ticket.ExternalID)
	if err != nil {
		return nil, err
	}
	var candidates []string
	for _, conv := range conversations {
		candidates = append(candidates, extractKeys(conv.Body)...)
	}
	return candidates, nil
}

// fromTrackerSearch asks the tracker for issues mentioning the ticket's own
// identifier, the convention when engineers reference the desk ticket from
// their side instead of the other way around.
func (r *Resolver) fromTrackerSearch(ctx context.Context, ticket Ticket) ([]string, error) {
	if ticket.ExternalID == "" {
		return nil, nil
	}
	issues, err := r.tracker.SearchIssues(ctx, ticket.ExternalID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(issues))
	for _, issue := range issues {
		keys = append(keys, issue.Key)
	}
	return keys, nil
}

// fromTitleFuzzy matches the ticket title against known project names and
// searches the tracker within the matched projects.
func (r *Resolver) fromTitleFuzzy(ctx context.Context, ticket Ticket) ([]string, error) {
	title := strings.ToLower(ticket.Title)
	if title == "" {
		return nil, nil
	}

	matched := map[string]struct{}{}
	for prefix, project := range r.rules.Projects {
		if project.Name != "" && strings.Contains(title, strings.ToLower(project.Name)) {
			matched[prefix] = struct{}{}
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	issues, err := r.tracker.SearchIssues(ctx, truncate(ticket.Title, 60))
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, issue := range issues {
		if _, ok := matched[keyPrefix(issue.Key)]; ok {
			keys = append(keys, issue.Key)
		}
	}
	return keys, nil
}

// validate accepts a candidate only when its prefix belongs to a configured
// project, is not a denylisted false positive, and the tracker confirms the
// item exists.
func (r *Resolver) validate(ctx context.Context, key string) bool {
	prefix := keyPrefix(key)
	if _, denied := denylist[prefix]; denied {
		return false
	}
	if !r.rules.KnownPrefix(prefix) {
		return false
	}
	if r.cachedVerified(ctx, key) {
		return true
	}

	issue, err := r.tracker.GetIssue(ctx, key)
	if err != nil {
		if !errors.Is(err, adapter.ErrIssueNotFound) {
			r.logger.Warn("linkage verification lookup failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if issue == nil {
		return false
	}

	r.markVerified(ctx, key)
	return true
}

func (r *Resolver) cachedVerified(ctx context.Context, key string) bool {
	if r.cache == nil {
		return false
	}
	hit, err := r.cache.Get(ctx, verifyCacheKey(key)).Result()
	return err == nil && hit == "1"
}

func (r *Resolver) markVerified(ctx context.Context, key string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, verifyCacheKey(key), "1", verifyCacheTTL).Err(); err != nil {
		r.logger.Debug("linkage cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func verifyCacheKey(key string) string {
	return "linkage:verified:" + key
}

func extractKeys(text string) []string {
	return keyPattern.FindAllString(text, -1)
}

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, '-'); i > 0 {
		return key[:i]
	}
	return key
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
