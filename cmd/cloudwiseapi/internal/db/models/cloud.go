package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Provider tags the external cloud a tenant resource lives in.
type Provider string

const (
	ProviderAWS   Provider = "aws"
	ProviderGCP   Provider = "gcp"
	ProviderAzure Provider = "azure"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderAWS, ProviderGCP, ProviderAzure}

// OwnedResource is a tenant-scoped record that belongs to exactly one user.
type OwnedResource interface {
	ResourceProvider() Provider
	OwnerID() int64
}

// NewOwnedResource returns an empty model for p, ready to be scanned into.
// Adding a provider requires a case here; unknown tags are rejected.
func NewOwnedResource(p Provider) (OwnedResource, error) {
	switch p {
	case ProviderAWS:
		return &AWSAccount{}, nil
	case ProviderGCP:
		return &GCPProject{}, nil
	case ProviderAzure:
		return &AzureSubscription{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p)
	}
}

// AWSAccount is a connected AWS account, assumed through RoleARN.
type AWSAccount struct {
	bun.BaseModel `bun:"table:aws_accounts,alias:aws"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	AccountNumber string    `bun:"account_number,notnull" json:"account_number"`
	Name          string    `bun:"name,notnull" json:"name"`
	RoleARN       string    `bun:"role_arn,notnull" json:"role_arn"`
	Region        string    `bun:"region,notnull" json:"region"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (a *AWSAccount) ResourceProvider() Provider { return ProviderAWS }
func (a *AWSAccount) OwnerID() int64             { return a.UserID }

// GCPProject is a connected Google Cloud project.
type GCPProject struct {
	bun.BaseModel `bun:"table:gcp_projects,alias:gcp"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID           int64     `bun:"user_id,notnull" json:"user_id"`
	ProjectID        string    `bun:"project_id,notnull" json:"project_id"`
	Name             string    `bun:"name,notnull" json:"name"`
	BillingAccountID string    `bun:"billing_account_id,notnull" json:"billing_account_id"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (g *GCPProject) ResourceProvider() Provider { return ProviderGCP }
func (g *GCPProject) OwnerID() int64             { return g.UserID }

// AzureSubscription is a connected Azure subscription.
type AzureSubscription struct {
	bun.BaseModel `bun:"table:azure_subscriptions,alias:az"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID         int64     `bun:"user_id,notnull" json:"user_id"`
	SubscriptionID string    `bun:"subscription_id,notnull" json:"subscription_id"`
	TenantID       string    `bun:"tenant_id,notnull" json:"tenant_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (a *AzureSubscription) ResourceProvider() Provider { return ProviderAzure }
func (a *AzureSubscription) OwnerID() int64             { return a.UserID }
