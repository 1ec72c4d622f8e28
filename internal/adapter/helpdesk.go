package adapter

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/config"
	"github.com/spec-kit/support-reconciler/internal/domain"
)

// HelpdeskClient reads the first-line helpdesk REST API. The helpdesk pages
// with page/per_page and filters on updated_since.
type HelpdeskClient struct {
	httpClient
}

// NewHelpdeskClient builds a client for the configured helpdesk instance.
func NewHelpdeskClient(cfg config.SourceConfig, pageSize int, logger *zap.Logger) *HelpdeskClient {
	base := fmt.Sprintf("https://%s/api/v2", cfg.Domain)
	return &HelpdeskClient{httpClient: newHTTPClient(base, cfg.APIKey, pageSize, logger)}
}

// Name implements Source.
func (c *HelpdeskClient) Name() string {
	return domain.SourceHelpdesk
}

type helpdeskTicket struct {
	ID              int64             `json:"id"`
	Subject         string            `json:"subject"`
	DescriptionText string            `json:"description_text"`
	Status          int               `json:"status"`
	Priority        int               `json:"priority"`
	Type            string            `json:"type"`
	Email           string            `json:"email"`
	ResponderName   string            `json:"responder_name"`
	GroupName       string            `json:"group_name"`
	DueBy           *time.Time        `json:"due_by"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CustomFields    map[string]string `json:"custom_fields"`
}

// FetchUpdatedSince walks all pages of tickets updated at or after since.
func (c *HelpdeskClient) FetchUpdatedSince(ctx context.Context, since time.Time) ([]NormalizedRecord, error) {
	var records []NormalizedRecord
	for page := 1; ; page++ {
		path := fmt.Sprintf("/tickets?per_page=%d&page=%d&order_by=updated_at", c.pageSize, page)
		if !since.IsZero() {
			path += "&updated_since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
		}

		var tickets []helpdeskTicket
		if err := c.getWithRetry(ctx, path, &tickets); err != nil {
			return nil, fmt.Errorf("helpdesk fetch page %d: %w", page, err)
		}
		for _, t := range tickets {
			records = append(records, t.normalize())
		}
		if len(tickets) < c.pageSize {
			return records, nil
		}
	}
}

func (t helpdeskTicket) normalize() NormalizedRecord {
	return NormalizedRecord{
		ExternalID:     fmt.Sprintf("FD-%d", t.ID),
		Title:          t.Subject,
		Description:    t.DescriptionText,
		Status:         domain.NormalizeStatus(t.Status),
		StatusText:     domain.NormalizeStatus(t.Status).String(),
		Priority:       priorityName(t.Priority),
		Category:       t.Type,
		RequesterEmail: t.Email,
		Assignee:       t.ResponderName,
		GroupName:      t.GroupName,
		DueDate:        t.DueBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		CustomFields:   t.CustomFields,
	}
}

func priorityName(p int) string {
	switch p {
	case 1:
		return "Low"
	case 2:
		return "Medium"
	case 3:
		return "High"
	case 4:
		return "Urgent"
	default:
		return "Medium"
	}
}
