package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidateDefaults checks that an empty configuration receives the
// documented defaults and ends up disabled.
func TestValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultPollInterval, cfg.Scheduler.PollInterval.Std())
	require.Equal(t, DefaultBatchSize, cfg.Scheduler.BatchSize)
	require.Equal(t, DefaultInitialJitterMax, cfg.Scheduler.InitialJitterMax.Std())
	require.Equal(t, ModeDisabled, cfg.Scheduler.Mode)
	require.Equal(t, BackendMemory, cfg.Storage.Backend)
}

// TestValidateRejectsBadValues covers the fatal-at-startup cases.
func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := map[string]Config{
		"negative poll interval": {
			Scheduler: SchedulerConfig{PollInterval: Duration(-time.Second)},
		},
		"negative batch size": {
			Scheduler: SchedulerConfig{BatchSize: -1},
		},
		"negative jitter": {
			Scheduler: SchedulerConfig{InitialJitterMax: Duration(-time.Second)},
		},
		"unknown mode": {
			Scheduler: SchedulerConfig{Mode: "standalone"},
		},
		"unknown backend": {
			Storage: StorageConfig{Backend: "postgres"},
		},
		"mongodb backend without uri": {
			Storage: StorageConfig{Backend: BackendMongoDB},
		},
		"enabled without smtp host": {
			Scheduler: SchedulerConfig{Mode: ModeSingle},
		},
		"enabled without smtp sender": {
			Scheduler: SchedulerConfig{Mode: ModeSingle},
			SMTP:      SMTPConfig{Host: "mail.local"},
		},
	}

	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Error(t, Validate(&cfg))
		})
	}
}

// TestModeAliases checks that the cluster synonyms normalize.
func TestModeAliases(t *testing.T) {
	t.Parallel()

	for _, alias := range []string{"cluster", "distributed", "multi", "Cluster"} {
		cfg := Config{
			Scheduler: SchedulerConfig{Mode: alias},
			SMTP:      SMTPConfig{Host: "mail.local", Sender: "noreply@example.com"},
		}

		require.NoError(t, Validate(&cfg))
		require.Equal(t, ModeCluster, cfg.Scheduler.Mode)
	}
}

// TestLoadRoundtrip parses a full YAML document including duration strings.
func TestLoadRoundtrip(t *testing.T) {
	t.Parallel()

	contents := `
log_level: debug
scheduler:
  poll_interval: 10s
  batch_size: 50
  initial_jitter_max: 2s
  mode: distributed
storage:
  backend: mongodb
  mongodb:
    uri: mongodb://localhost:27017
    database: calarm
smtp:
  host: mail.local
  port: 2525
  sender: noreply@example.com
`

	path := filepath.Join(t.TempDir(), "calarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.Scheduler.PollInterval.Std())
	require.Equal(t, 50, cfg.Scheduler.BatchSize)
	require.Equal(t, 2*time.Second, cfg.Scheduler.InitialJitterMax.Std())
	require.Equal(t, ModeCluster, cfg.Scheduler.Mode)
	require.Equal(t, BackendMongoDB, cfg.Storage.Backend)
	require.Equal(t, "calarm", cfg.Storage.Mongo.Database)
	require.Equal(t, 2525, cfg.SMTP.Port)
}

// TestLoadMissingFile surfaces the read error as-is.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
