package syncsim

import (
	"time"

	"github.com/spacemeshos/go-peerdid/repo"
)

// Config tunes a simulation session.
type Config struct {
	// Jitter bounds the random delay before an agent merges a received record.
	Jitter time.Duration `mapstructure:"jitter"`

	Autogossip            bool          `mapstructure:"autogossip"`
	AutogossipInterval    time.Duration `mapstructure:"autogossip-interval"`
	AutogossipProbability float64       `mapstructure:"autogossip-probability"`

	// Backend stores the genesis documents each agent holds.
	Backend repo.Backend `mapstructure:"backend"`
	// SessionDir keeps agent repositories on disk. Empty keeps them in memory.
	SessionDir string `mapstructure:"session-dir"`

	// Seed makes record keys and gossip choices reproducible. Zero picks one.
	Seed uint64 `mapstructure:"seed"`

	// Connections lists who may update whom, see ParseConnections.
	Connections string `mapstructure:"connections"`
}

// DefaultConnections is the reachability graph used when none is configured.
const DefaultConnections = "A.1+-A.3,A.4 A.1+-+A.2 A.1-+B.2 A.2+-B.1,B.3 B.2+-+A.2,B.3 B.1+-+B.3 B.1-+B.2 B.4-+B.1,B.3"

func DefaultConfig() Config {
	return Config{
		Jitter:                125 * time.Millisecond,
		AutogossipInterval:    330 * time.Millisecond,
		AutogossipProbability: 0.05,
		Backend:               repo.BackendFiles,
		Connections:           DefaultConnections,
	}
}
