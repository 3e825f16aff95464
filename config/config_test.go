package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-peerdid/repo"
)

func TestLoadConfig(t *testing.T) {
	vip := viper.New()
	err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), vip)
	require.ErrorContains(t, err, "failed to read config file")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peerdid.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[main]
data-folder = "/tmp/dids"
metrics = true

[repo]
backend = "sqlite"
latency-metering = true

[sim]
jitter = "10ms"
autogossip = true
connections = "A.1+-+B.1"

[logging]
log-encoder = "json"
sim = "debug"
`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, Load(&cfg, path))
	require.Equal(t, "/tmp/dids", cfg.DataDir)
	require.True(t, cfg.CollectMetrics)
	require.Equal(t, repo.BackendSQLite, cfg.Repo.Backend)
	require.Equal(t, 256, cfg.Repo.CacheSize)
	require.True(t, cfg.Repo.LatencyMetering)
	require.Equal(t, 10*time.Millisecond, cfg.Sim.Jitter)
	require.True(t, cfg.Sim.Autogossip)
	require.Equal(t, 0.05, cfg.Sim.AutogossipProbability)
	require.Equal(t, "A.1+-+B.1", cfg.Sim.Connections)
	require.Equal(t, JSONLogEncoder, cfg.LOGGING.Encoder)
	require.Equal(t, "debug", cfg.LOGGING.Levels()[SimLogger])
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peerdid.toml")
	require.NoError(t, os.WriteFile(path, []byte("[repo]\nflavour = \"strawberry\"\n"), 0o600))
	cfg := DefaultConfig()
	require.ErrorContains(t, Load(&cfg, path), "flavour")
}
