package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "triage-cli", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, int64(4), cfg.Browser().Concurrency)
	assert.Equal(t, 10, cfg.Discovery().MaxResults)
	assert.Equal(t, 100, cfg.Discovery().MaxBatchSize)
	assert.Equal(t, 60*time.Second, cfg.Resources().DisposeTimeout)
	assert.Equal(t, 100, cfg.Diagnostics().MaxErrorHistory)
	assert.Equal(t, 5*time.Minute, cfg.Diagnostics().PatternWindow)
	assert.False(t, cfg.Store().Enabled)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("discovery.max_results", 25)
	v.Set("diagnostics.max_error_history", 7)
	v.Set("browser.headless", false)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Discovery().MaxResults)
	assert.Equal(t, 7, cfg.Diagnostics().MaxErrorHistory)
	assert.False(t, cfg.Browser().Headless)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"zero browser concurrency", "browser.concurrency", 0},
		{"zero batch size", "discovery.max_batch_size", 0},
		{"negative max results", "discovery.max_results", -1},
		{"zero dispose timeout", "resources.dispose_timeout", "0s"},
		{"zero history cap", "diagnostics.max_error_history", 0},
		{"zero pattern window", "diagnostics.pattern_window", "0s"},
		{"negative enrichment rate", "diagnostics.enrichment_rate", -1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tt.key, tt.value)

			_, err := NewConfigFromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserDisableCache(false)
	cfg.SetDiscoveryMaxResults(42)
	cfg.SetDiagnosticsContextualSuggestions(false)
	cfg.SetStoreEnabled(true)

	assert.False(t, cfg.Browser().Headless)
	assert.False(t, cfg.Browser().DisableCache)
	assert.Equal(t, 42, cfg.Discovery().MaxResults)
	assert.False(t, cfg.Diagnostics().ContextualSuggestions)
	assert.True(t, cfg.Store().Enabled)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "triage", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=triage sslmode=disable", p.DSN())
}
