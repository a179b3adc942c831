package config

import "time"

// DomainConfig holds all configurable business rules and constraints.
// Geometry invariants that are part of the coordinate contract (zoom
// bounds, edge routing shape) live as constants in domain/geometry;
// only the knobs an operator actually tunes are configurable.
type DomainConfig struct {
	// Node box geometry (canvas units), used when fitting the
	// viewport to loaded content
	NodeBoxWidth  float64
	NodeBoxHeight float64

	// Persistence cadence
	SaveDebounce time.Duration

	// Quota
	FreeTierLimit int

	// Memo constraints
	MaxMemoContentLength int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		NodeBoxWidth:  160,
		NodeBoxHeight: 80,

		SaveDebounce: time.Second,

		FreeTierLimit: 10,

		MaxMemoContentLength: 10000,
	}
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Quicker feedback loops and no quota friction while developing
	config.SaveDebounce = 200 * time.Millisecond
	config.FreeTierLimit = 1000

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
