package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/config"
	"github.com/spec-kit/support-reconciler/internal/domain"
)

// TrackerClient reads the engineering issue tracker REST API. The tracker
// pages with startAt/maxResults and speaks a query language for searches.
type TrackerClient struct {
	httpClient
}

// NewTrackerClient builds a client for the configured tracker instance.
func NewTrackerClient(cfg config.SourceConfig, pageSize int, logger *zap.Logger) *TrackerClient {
	base := fmt.Sprintf("https://%s/rest/api/2", cfg.Domain)
	return &TrackerClient{httpClient: newHTTPClient(base, cfg.APIKey, pageSize, logger)}
}

// Name implements Source.
func (c *TrackerClient) Name() string {
	return domain.SourceTracker
}

type trackerIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Assignee struct {
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
		} `json:"assignee"`
		Reporter struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"reporter"`
		DueDate *time.Time `json:"duedate"`
		Created time.Time  `json:"created"`
		Updated time.Time  `json:"updated"`
	} `json:"fields"`
}

type trackerSearchEnvelope struct {
	StartAt    int            `json:"startAt"`
	MaxResults int            `json:"maxResults"`
	Total      int            `json:"total"`
	Issues     []trackerIssue `json:"issues"`
}

// FetchUpdatedSince walks search pages for issues updated at or after since.
func (c *TrackerClient) FetchUpdatedSince(ctx context.Context, since time.Time) ([]NormalizedRecord, error) {
	jql := "order by updated desc"
	if !since.IsZero() {
		jql = fmt.Sprintf("updated >= '%s' order by updated desc", since.UTC().Format("2006-01-02 15:04"))
	}

	var records []NormalizedRecord
	for startAt := 0; ; {
		envelope, err := c.search(ctx, jql, startAt)
		if err != nil {
			return nil, fmt.Errorf("tracker fetch at %d: %w", startAt, err)
		}
		for _, issue := range envelope.Issues {
			records = append(records, issue.normalize())
		}
		startAt += len(envelope.Issues)
		if startAt >= envelope.Total || len(envelope.Issues) == 0 {
			return records, nil
		}
	}
}

// GetIssue fetches one issue by key.
func (c *TrackerClient) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue trackerIssue
	if err := c.getWithRetry(ctx, "/issue/"+url.PathEscape(key), &issue); err != nil {
		if errors.Is(err, ErrIssueNotFound) {
			return nil, ErrIssueNotFound
		}
		return nil, fmt.Errorf("tracker issue %s: %w", key, err)
	}
	return &Issue{Key: issue.Key, Summary: issue.Fields.Summary, Status: issue.Fields.Status.Name}, nil
}

// SearchIssues runs a free-text search and returns the first page of hits.
func (c *TrackerClient) SearchIssues(ctx context.Context, text string) ([]Issue, error) {
	jql := fmt.Sprintf("text ~ '%s'", escapeQuery(text))
	envelope, err := c.search(ctx, jql, 0)
	if err != nil {
		return nil, fmt.Errorf("tracker search %q: %w", text, err)
	}

	issues := make([]Issue, 0, len(envelope.Issues))
	for _, issue := range envelope.Issues {
		issues = append(issues, Issue{Key: issue.Key, Summary: issue.Fields.Summary, Status: issue.Fields.Status.Name})
	}
	return issues, nil
}

func (c *TrackerClient) search(ctx context.Context, jql string, startAt int) (*trackerSearchEnvelope, error) {
	path := fmt.Sprintf("/search?jql=%s&startAt=%d&maxResults=%d", url.QueryEscape(jql), startAt, c.pageSize)
	var envelope trackerSearchEnvelope
	if err := c.getWithRetry(ctx, path, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (issue trackerIssue) normalize() NormalizedRecord {
	return NormalizedRecord{
		ExternalID:     issue.Key,
		Title:          issue.Fields.Summary,
		Description:    issue.Fields.Description,
		Status:         trackerStatusCode(issue.Fields.Status.Name),
		StatusText:     issue.Fields.Status.Name,
		Priority:       issue.Fields.Priority.Name,
		Category:       issue.Fields.IssueType.Name,
		RequesterEmail: issue.Fields.Reporter.EmailAddress,
		Assignee:       issue.Fields.Assignee.DisplayName,
		GroupName:      "",
		DueDate:        issue.Fields.DueDate,
		CreatedAt:      issue.Fields.Created,
		UpdatedAt:      issue.Fields.Updated,
		CustomFields:   nil,
	}
}

// trackerStatusCode maps tracker workflow states onto the shared table.
func trackerStatusCode(name string) domain.StatusCode {
	switch strings.ToLower(name) {
	case "done", "closed":
		return domain.StatusClosed
	case "resolved":
		return domain.StatusResolved
	case "blocked", "on hold":
		return domain.StatusFrozen
	case "waiting for support", "waiting for customer":
		return domain.StatusPending
	default:
		return domain.StatusOpen
	}
}

func escapeQuery(text string) string {
	return strings.ReplaceAll(text, "'", "\\'")
}
