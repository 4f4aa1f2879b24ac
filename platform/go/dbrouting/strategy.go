// Package dbrouting holds the value model used to route a tenant to a physical
// database: the hosting strategy (shared, dedicated, external), the backing
// engine (provider), and the optional add-ons a plan can enable. Everything in
// this package is pure data plus compatibility rules; no I/O happens here.
package dbrouting

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy is the canonical identifier for how a tenant's data is hosted.
type Strategy string

const (
	// StrategyNone marks an unconfigured tenant. It is never a valid operating
	// strategy; Validate rejects it so it cannot be coerced into Shared silently.
	StrategyNone Strategy = "none"
	// StrategyShared places the tenant on the multi-tenant shared database.
	StrategyShared Strategy = "shared"
	// StrategyDedicated gives the tenant its own database instance managed by us.
	StrategyDedicated Strategy = "dedicated"
	// StrategyExternal points at a database the customer manages themselves.
	StrategyExternal Strategy = "external"
)

// ErrNoStrategy is returned when a tenant reaches execution without a usable
// hosting strategy. This is a configuration error, not a fallback condition.
var ErrNoStrategy = errors.New("tenant has no operating database strategy")

// StrategyProfile describes the capabilities and economics of one strategy.
type StrategyProfile struct {
	ID          Strategy
	DisplayName string

	SupportsReadReplicas           bool
	SupportsAutoScaling            bool
	SupportsGeographicDistribution bool
	SupportsDedicatedResources     bool
	AllowsMultiTenantQueries       bool

	// CostMultiplier is relative to the shared baseline (1.0).
	CostMultiplier float64
	// UptimeSLA is the contractual availability percentage.
	UptimeSLA float64
	// MaxTenantsPerDatabase caps co-location; 1 means single tenant.
	MaxTenantsPerDatabase int
}

// strategyProfiles is the registry of strategy capabilities keyed by ID.
var strategyProfiles = map[Strategy]StrategyProfile{
	StrategyNone: {
		ID:          StrategyNone,
		DisplayName: "None",
	},
	StrategyShared: {
		ID:                       StrategyShared,
		DisplayName:              "Shared",
		AllowsMultiTenantQueries: true,
		CostMultiplier:           1.0,
		UptimeSLA:                99.5,
		MaxTenantsPerDatabase:    500,
	},
	StrategyDedicated: {
		ID:                         StrategyDedicated,
		DisplayName:                "Dedicated",
		SupportsReadReplicas:       true,
		SupportsAutoScaling:        true,
		SupportsDedicatedResources: true,
		CostMultiplier:             3.0,
		UptimeSLA:                  99.9,
		MaxTenantsPerDatabase:      1,
	},
	StrategyExternal: {
		ID:                             StrategyExternal,
		DisplayName:                    "External",
		SupportsReadReplicas:           true,
		SupportsAutoScaling:            true,
		SupportsGeographicDistribution: true,
		SupportsDedicatedResources:     true,
		CostMultiplier:                 5.0,
		UptimeSLA:                      99.95,
		MaxTenantsPerDatabase:          1,
	},
}

// ParseStrategy maps a stored or remote strategy name to its canonical ID.
// Matching is case-insensitive and tolerates the display names used by the
// customer API. Unknown or empty values map to StrategyNone.
func ParseStrategy(s string) Strategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shared", "multitenant", "multi-tenant":
		return StrategyShared
	case "dedicated", "singletenant", "single-tenant":
		return StrategyDedicated
	case "external", "customer-managed", "byodb":
		return StrategyExternal
	default:
		return StrategyNone
	}
}

// Profile returns the capability profile for the strategy. Unknown strategies
// report the StrategyNone profile.
func (s Strategy) Profile() StrategyProfile {
	if p, ok := strategyProfiles[s]; ok {
		return p
	}
	return strategyProfiles[StrategyNone]
}

// Validate rejects strategies that cannot operate a live tenant.
func (s Strategy) Validate() error {
	switch s {
	case StrategyShared, StrategyDedicated, StrategyExternal:
		return nil
	case StrategyNone:
		return ErrNoStrategy
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrNoStrategy, string(s))
	}
}

// RequiresOwnDatabase reports whether the strategy migrates a per-tenant
// database rather than the shared one.
func (s Strategy) RequiresOwnDatabase() bool {
	return s == StrategyDedicated || s == StrategyExternal
}

// IsCompatibleWith reports whether every option enabled in opts is backed by a
// capability this strategy actually provides. Options are never silently
// dropped; an unsupported combination is a hard incompatibility.
func (s Strategy) IsCompatibleWith(opts Options) bool {
	p := s.Profile()
	if opts.ReadReplicas && !p.SupportsReadReplicas {
		return false
	}
	if opts.AutoScaling && !p.SupportsAutoScaling {
		return false
	}
	if opts.GeographicDistribution && !p.SupportsGeographicDistribution {
		return false
	}
	if opts.DedicatedResources && !p.SupportsDedicatedResources {
		return false
	}
	return true
}

func (s Strategy) String() string {
	return s.Profile().DisplayName
}
