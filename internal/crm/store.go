package crm

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a client or property id does not resolve
// within the organization.
var ErrNotFound = errors.New("record not found")

// Store provides tenant-scoped, read-only access to CRM records. All lookups
// are bounded to a single organization; tenancy enforcement happened upstream.
type Store interface {
	Client(ctx context.Context, orgID, id string) (*Client, error)
	Property(ctx context.Context, orgID, id string) (*Property, error)
	ClientsByOrganization(ctx context.Context, orgID string) ([]*Client, error)
	PropertiesByOrganization(ctx context.Context, orgID string) ([]*Property, error)

	// OrganizationAPIKey returns the organization-level LLM key, or an empty
	// string when the organization has none configured.
	OrganizationAPIKey(ctx context.Context, orgID string) (string, error)
}
