package dbrouting

// Options is the set of optional database add-ons a plan can enable. The zero
// value means no add-ons. Options is a plain value type; the With* mutators
// return a modified copy so configured option sets can be shared freely.
type Options struct {
	ReadReplicas           bool
	GeographicDistribution bool
	EnhancedBackup         bool
	EncryptionAtRest       bool
	DedicatedResources     bool
	AutoScaling            bool
	AdvancedMonitoring     bool
	ComplianceFeatures     bool
}

// Fixed cost increments per enabled option, added on top of the strategy's
// base multiplier.
const (
	costReadReplicas           = 1.5
	costGeographicDistribution = 0.8
	costEnhancedBackup         = 0.3
	costEncryptionAtRest       = 0.2
	costDedicatedResources     = 1.0
	costAutoScaling            = 0.4
	costAdvancedMonitoring     = 0.2
	costComplianceFeatures     = 0.5
)

func (o Options) WithReadReplicas() Options           { o.ReadReplicas = true; return o }
func (o Options) WithGeographicDistribution() Options { o.GeographicDistribution = true; return o }
func (o Options) WithEnhancedBackup() Options         { o.EnhancedBackup = true; return o }
func (o Options) WithEncryptionAtRest() Options       { o.EncryptionAtRest = true; return o }
func (o Options) WithDedicatedResources() Options     { o.DedicatedResources = true; return o }
func (o Options) WithAutoScaling() Options            { o.AutoScaling = true; return o }
func (o Options) WithAdvancedMonitoring() Options     { o.AdvancedMonitoring = true; return o }
func (o Options) WithComplianceFeatures() Options     { o.ComplianceFeatures = true; return o }

// flags returns the option booleans in declaration order.
func (o Options) flags() []bool {
	return []bool{
		o.ReadReplicas,
		o.GeographicDistribution,
		o.EnhancedBackup,
		o.EncryptionAtRest,
		o.DedicatedResources,
		o.AutoScaling,
		o.AdvancedMonitoring,
		o.ComplianceFeatures,
	}
}

// EnabledCount returns how many add-ons are switched on.
func (o Options) EnabledCount() int {
	n := 0
	for _, f := range o.flags() {
		if f {
			n++
		}
	}
	return n
}

// HasAny reports whether at least one add-on is enabled.
func (o Options) HasAny() bool {
	return o.EnabledCount() > 0
}

// TotalCostMultiplier is the strategy's base multiplier plus the fixed
// increment of every enabled option. Compatibility is not checked here;
// callers validate with IsCompatibleWith before pricing.
func (o Options) TotalCostMultiplier(s Strategy) float64 {
	total := s.Profile().CostMultiplier
	if o.ReadReplicas {
		total += costReadReplicas
	}
	if o.GeographicDistribution {
		total += costGeographicDistribution
	}
	if o.EnhancedBackup {
		total += costEnhancedBackup
	}
	if o.EncryptionAtRest {
		total += costEncryptionAtRest
	}
	if o.DedicatedResources {
		total += costDedicatedResources
	}
	if o.AutoScaling {
		total += costAutoScaling
	}
	if o.AdvancedMonitoring {
		total += costAdvancedMonitoring
	}
	if o.ComplianceFeatures {
		total += costComplianceFeatures
	}
	return total
}

// EstimateMonthlyCost combines strategy, engine and option multipliers against
// a base monthly price. Used by the CLI plan inspection; pricing records
// themselves live outside this subsystem.
func EstimateMonthlyCost(basePrice float64, s Strategy, p Provider, o Options) float64 {
	return basePrice * o.TotalCostMultiplier(s) * p.Profile().CostMultiplier
}
