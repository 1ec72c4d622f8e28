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

// ServiceDeskClient reads the second/third-line service desk REST API.
// Responses come wrapped in an envelope object and paged with page/per_page.
type ServiceDeskClient struct {
	httpClient
}

// NewServiceDeskClient builds a client for the configured service desk.
func NewServiceDeskClient(cfg config.SourceConfig, pageSize int, logger *zap.Logger) *ServiceDeskClient {
	base := fmt.Sprintf("https://%s/api/v2", cfg.Domain)
	return &ServiceDeskClient{httpClient: newHTTPClient(base, cfg.APIKey, pageSize, logger)}
}

// Name implements Source.
func (c *ServiceDeskClient) Name() string {
	return domain.SourceServiceDesk
}

type serviceDeskTicket struct {
	ID            int64             `json:"id"`
	Subject       string            `json:"subject"`
	Description   string            `json:"description_text"`
	Status        int               `json:"status"`
	StatusName    string            `json:"status_name"`
	Priority      int               `json:"priority"`
	Category      string            `json:"category"`
	RequesterMail string            `json:"requester_email"`
	AgentName     string            `json:"agent_name"`
	GroupName     string            `json:"group_name"`
	DueBy         *time.Time        `json:"due_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	CustomFields  map[string]string `json:"custom_fields"`
}

type serviceDeskTicketsEnvelope struct {
	Tickets []serviceDeskTicket `json:"tickets"`
}

type serviceDeskConversation struct {
	BodyText  string    `json:"body_text"`
	CreatedAt time.Time `json:"created_at"`
}

type serviceDeskConversationsEnvelope struct {
	Conversations []serviceDeskConversation `json:"conversations"`
}

// FetchUpdatedSince walks all pages of tickets updated at or after since.
func (c *ServiceDeskClient) FetchUpdatedSince(ctx context.Context, since time.Time) ([]NormalizedRecord, error) {
	query := ""
	if !since.IsZero() {
		query = "&updated_since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	return c.fetchPaged(ctx, query)
}

// FetchGroupTickets returns the open tickets sitting in one group's queue.
// Used by the orphan sweep against the engineering-adjacent group.
func (c *ServiceDeskClient) FetchGroupTickets(ctx context.Context, groupName string) ([]NormalizedRecord, error) {
	return c.fetchPaged(ctx, "&group_name="+url.QueryEscape(groupName)+"&only_open=true")
}

func (c *ServiceDeskClient) fetchPaged(ctx context.Context, extraQuery string) ([]NormalizedRecord, error) {
	var records []NormalizedRecord
	for page := 1; ; page++ {
		path := fmt.Sprintf("/tickets?per_page=%d&page=%d&order_by=updated_at%s", c.pageSize, page, extraQuery)

		var envelope serviceDeskTicketsEnvelope
		if err := c.getWithRetry(ctx, path, &envelope); err != nil {
			return nil, fmt.Errorf("servicedesk fetch page %d: %w", page, err)
		}
		for _, t := range envelope.Tickets {
			records = append(records, t.normalize())
		}
		if len(envelope.Tickets) < c.pageSize {
			return records, nil
		}
	}
}

// ListConversations fetches the comment thread of one ticket.
func (c *ServiceDeskClient) ListConversations(ctx context.Context, externalID string) ([]Conversation, error) {
	id := trimExternalPrefix(externalID)
	path := fmt.Sprintf("/tickets/%s/conversations", url.PathEscape(id))

	var envelope serviceDeskConversationsEnvelope
	if err := c.getWithRetry(ctx, path, &envelope); err != nil {
		return nil, fmt.Errorf("servicedesk conversations for %s: %w", externalID, err)
	}

	conversations := make([]Conversation, 0, len(envelope.Conversations))
	for _, conv := range envelope.Conversations {
		conversations = append(conversations, Conversation{Body: conv.BodyText, CreatedAt: conv.CreatedAt})
	}
	return conversations, nil
}

func (t serviceDeskTicket) normalize() NormalizedRecord {
	status := domain.NormalizeStatus(t.Status)
	statusText := t.StatusName
	if statusText == "" {
		statusText = status.String()
	}
	return NormalizedRecord{
		ExternalID:     fmt.Sprintf("SD-%d", t.ID),
		Title:          t.Subject,
		Description:    t.Description,
		Status:         status,
		StatusText:     statusText,
		Priority:       priorityName(t.Priority),
		Category:       t.Category,
		RequesterEmail: t.RequesterMail,
		Assignee:       t.AgentName,
		GroupName:      t.GroupName,
		DueDate:        t.DueBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		CustomFields:   t.CustomFields,
	}
}

// trimExternalPrefix strips the source tag from ids like SD-4711.
func trimExternalPrefix(externalID string) string {
	for i := 0; i < len(externalID); i++ {
		if externalID[i] == '-' {
			return externalID[i+1:]
		}
	}
	return externalID
}
