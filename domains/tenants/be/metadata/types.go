// Package metadata is the cached client of the customer API, the external
// source of truth for tenant identity and database placement. All reads go
// through a TTL cache; the API being down degrades reads instead of failing
// them wherever the contract allows.
package metadata

import (
	"github.com/google/uuid"

	"github.com/Teck-Lab/teck-cloud-saas/platform/go/dbrouting"
)

// TenantDetails is the tenant record as served by the customer API. Records
// are replaced wholesale on refresh, never mutated in place.
type TenantDetails struct {
	ID          uuid.UUID `json:"tenantId"`
	Identifier  string    `json:"identifier"`
	DisplayName string    `json:"displayName"`
	PlanName    string    `json:"planName"`

	StrategyName          string `json:"strategy"`
	ProviderName          string `json:"provider"`
	WriteConnectionString string `json:"writeConnectionString"`
	ReadConnectionString  string `json:"readConnectionString"`
	HasReadReplicas       bool   `json:"hasReadReplicas"`

	IsActive  bool `json:"isActive"`
	IsPrimary bool `json:"isPrimary"`
}

// Strategy parses the record's strategy name; unknown names map to
// StrategyNone so callers can surface the configuration error.
func (t TenantDetails) Strategy() dbrouting.Strategy {
	return dbrouting.ParseStrategy(t.StrategyName)
}

// Provider parses the record's engine name, falling back to classifying the
// write connection string when the record carries no engine label.
func (t TenantDetails) Provider() dbrouting.Provider {
	if p := dbrouting.ParseProvider(t.ProviderName); p != dbrouting.ProviderNone {
		return p
	}
	return dbrouting.ClassifyConnectionString(t.WriteConnectionString)
}

// Page is one page of tenant records.
type Page struct {
	Items      []TenantDetails `json:"items"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
	TotalItems int             `json:"totalItems"`
}

// DatabaseInfo is the per-tenant database placement record served by
// GET /tenants/{id}/database-info.
type DatabaseInfo struct {
	TenantID              uuid.UUID `json:"tenantId"`
	WriteConnectionString string    `json:"writeConnectionString"`
	ReadConnectionString  string    `json:"readConnectionString"`
	ProviderName          string    `json:"provider"`
	StrategyName          string    `json:"strategy"`
	HasReadReplicas       bool      `json:"hasReadReplicas"`
}

// Strategy parses the placement record's strategy name.
func (d DatabaseInfo) Strategy() dbrouting.Strategy {
	return dbrouting.ParseStrategy(d.StrategyName)
}

// Provider parses the placement record's engine, classifying the write
// connection string when no engine label is present.
func (d DatabaseInfo) Provider() dbrouting.Provider {
	if p := dbrouting.ParseProvider(d.ProviderName); p != dbrouting.ProviderNone {
		return p
	}
	return dbrouting.ClassifyConnectionString(d.WriteConnectionString)
}
