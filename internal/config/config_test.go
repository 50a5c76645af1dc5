// File: internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "bridgecheck", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 1280, cfg.Browser().Viewport["width"])
	assert.Equal(t, "http://localhost:5173", cfg.Harness().BaseURL)
	assert.Equal(t, "verification", cfg.Harness().ArtifactDir)
	assert.Equal(t, 10*time.Second, cfg.Harness().WaitTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Harness().PollInterval)
	assert.Equal(t, "electron.ipcRenderer", cfg.Bridge().GlobalPath)
	assert.Equal(t, 5*time.Second, cfg.Bridge().DynamicTimeout)
	assert.True(t, cfg.Scenario().FiltersOpen)
	assert.Equal(t, 50, cfg.Scenario().PageSize)

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Harness Validation", func(t *testing.T) {
		cases := []struct {
			name    string
			mutate  func(h *HarnessConfig)
			wantErr string
		}{
			{"relative base url", func(h *HarnessConfig) { h.BaseURL = "localhost:5173" }, "base_url"},
			{"ftp base url", func(h *HarnessConfig) { h.BaseURL = "ftp://localhost" }, "base_url"},
			{"empty artifact dir", func(h *HarnessConfig) { h.ArtifactDir = "" }, "artifact_dir"},
			{"zero wait timeout", func(h *HarnessConfig) { h.WaitTimeout = 0 }, "wait_timeout"},
			{"negative close timeout", func(h *HarnessConfig) { h.CloseTimeout = -time.Second }, "close_timeout"},
			{"poll slower than wait", func(h *HarnessConfig) { h.PollInterval = h.WaitTimeout }, "poll_interval"},
			{"zero parallel", func(h *HarnessConfig) { h.Parallel = 0 }, "parallel"},
			{"unknown format", func(h *HarnessConfig) { h.ReportFormat = "sarif" }, "report_format"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				cfg := NewDefaultConfig()
				tc.mutate(&cfg.HarnessCfg)
				err := cfg.Validate()
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			})
		}
	})

	t.Run("Bridge Validation", func(t *testing.T) {
		valid := BridgeConfig{GlobalPath: "electron.ipcRenderer", BindingName: "__emit", DynamicTimeout: time.Second}
		assert.NoError(t, valid.Validate())

		badPath := valid
		badPath.GlobalPath = "electron..ipcRenderer"
		assert.Error(t, badPath.Validate())

		injection := valid
		injection.GlobalPath = "electron;alert(1)"
		assert.Error(t, injection.Validate())

		badBinding := valid
		badBinding.BindingName = "emit-calls"
		assert.Error(t, badBinding.Validate())

		noTimeout := valid
		noTimeout.DynamicTimeout = 0
		assert.Error(t, noTimeout.Validate())
	})

	t.Run("Scenario Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.ScenarioCfg.PageSize = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "page_size")
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("ReadsYAML", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yamlConfig := []byte(`
harness:
  base_url: "http://127.0.0.1:8080"
  wait_timeout: 5s
  report_format: junit
scenario:
  filters_open: false
bridge:
  global_path: "api.host"
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:8080", cfg.Harness().BaseURL)
		assert.Equal(t, 5*time.Second, cfg.Harness().WaitTimeout)
		assert.Equal(t, "junit", cfg.Harness().ReportFormat)
		assert.False(t, cfg.Scenario().FiltersOpen)
		assert.Equal(t, "api.host", cfg.Bridge().GlobalPath)
		// Untouched keys keep their defaults.
		assert.Equal(t, "Soundstarter", cfg.Scenario().AppTitle)
	})

	t.Run("ExpandsHomeDirectory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		v := viper.New()
		SetDefaults(v)
		v.Set("harness.artifact_dir", "~/artifacts")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		// go-homedir caches the first lookup, so only assert the prefix was replaced.
		assert.NotContains(t, cfg.Harness().ArtifactDir, "~")
		assert.Equal(t, "artifacts", filepath.Base(cfg.Harness().ArtifactDir))
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("harness.parallel", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		BindEnvironment(v)
		t.Setenv("BRIDGECHECK_HARNESS_BASE_URL", "http://localhost:9999")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9999", cfg.Harness().BaseURL)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetBrowserHeadless(false)
	iface.SetHarnessBaseURL("http://localhost:1")
	iface.SetHarnessArtifactDir(os.TempDir())
	iface.SetHarnessReportFormat("json")
	iface.SetHarnessReportPath("out.json")
	iface.SetHarnessParallel(3)
	iface.SetScenarioFiltersOpen(false)

	assert.False(t, iface.Browser().Headless)
	assert.Equal(t, "http://localhost:1", iface.Harness().BaseURL)
	assert.Equal(t, os.TempDir(), iface.Harness().ArtifactDir)
	assert.Equal(t, "json", iface.Harness().ReportFormat)
	assert.Equal(t, "out.json", iface.Harness().ReportPath)
	assert.Equal(t, 3, iface.Harness().Parallel)
	assert.False(t, iface.Scenario().FiltersOpen)
}
