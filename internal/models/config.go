package models

import (
	"path"

	"github.com/kardianos/osext"
)

// AppConfig is the application's main configuration structure
type AppConfig struct {
	// The directory where Gustavo stores all of its data - defaults to the /data subdirectory of the
	// folder the executable resides in
	DataDir string `json:"dataDir"`
	// The IP address to listen at - including the port number
	ListenAddress string `json:"listenAddress"`
	// The rating scale every event uses
	Scale ScaleConfig `json:"scale"`
	// The per-user write limits
	RateLimit RateLimitConfig `json:"rateLimit"`
}

// ScaleConfig defines the rating scale scores have to stay within
type ScaleConfig struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains checks if the given score lies inside the scale
func (c ScaleConfig) Contains(score int) bool {
	return score >= c.Min && score <= c.Max
}

// RateLimitConfig configures the per-(event, user) write limiter
type RateLimitConfig struct {
	// The number of writes a single user may issue in one burst
	Burst int `json:"burst"`
	// How many milliseconds it takes until one spent write is available again
	RefillMillis int `json:"refillMillis"`
}

// GetDefaultConfig returns the default configuration values for the application
func GetDefaultConfig() (*AppConfig, error) {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		DataDir:       path.Join(execDir, "data"),
		ListenAddress: ":3000",
		Scale: ScaleConfig{
			Min: 1,
			Max: 4,
		},
		RateLimit: RateLimitConfig{
			Burst:        10,
			RefillMillis: 50,
		},
	}, nil
}
