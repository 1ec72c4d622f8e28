// Package adapter fetches ticket data from the three upstream systems and
// maps each ticket into a normalized intermediate record. Pagination and rate
// limiting stay inside the adapters; callers see only NormalizedRecord slices
// and typed retry-after errors.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/support-reconciler/internal/domain"
)

// NormalizedRecord is the source-independent view of one upstream ticket.
type NormalizedRecord struct {
	ExternalID     string
	Title          string
	Description    string
	Status         domain.StatusCode
	StatusText     string
	Priority       string
	Category       string
	RequesterEmail string
	Assignee       string
	GroupName      string
	DueDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CustomFields   map[string]string
}

// RetryAfterError signals an upstream 429 with the server-supplied delay.
type RetryAfterError struct {
	After time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.After)
}

// Source is the minimal contract every upstream system satisfies.
type Source interface {
	Name() string
	FetchUpdatedSince(ctx context.Context, since time.Time) ([]NormalizedRecord, error)
}

// Conversation is one entry of a ticket's comment thread.
type Conversation struct {
	Body      string
	CreatedAt time.Time
}

// ServiceDesk extends Source with the mid-tier-only operations used by the
// linkage resolver and the orphan sweep.
type ServiceDesk interface {
	Source
	ListConversations(ctx context.Context, externalID string) ([]Conversation, error)
	FetchGroupTickets(ctx context.Context, groupName string) ([]NormalizedRecord, error)
}

// Issue is a projection of one engineering-tracker item.
type Issue struct {
	Key     string
	Summary string
	Status  string
}

// Tracker is the engineering issue tracker lookup surface.
type Tracker interface {
	// GetIssue returns ErrIssueNotFound when the key does not exist.
	GetIssue(ctx context.Context, key string) (*Issue, error)
	SearchIssues(ctx context.Context, text string) ([]Issue, error)
}

// ErrIssueNotFound marks a tracker lookup for a key that does not exist.
var ErrIssueNotFound = errors.New("tracker issue not found")
