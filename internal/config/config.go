// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Harness() HarnessConfig
	Bridge() BridgeConfig
	Scenario() ScenarioConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Harness Setters
	SetHarnessBaseURL(string)
	SetHarnessArtifactDir(string)
	SetHarnessReportFormat(string)
	SetHarnessReportPath(string)
	SetHarnessParallel(int)

	// Scenario Setters
	SetScenarioFiltersOpen(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	HarnessCfg  HarnessConfig  `mapstructure:"harness" yaml:"harness"`
	BridgeCfg   BridgeConfig   `mapstructure:"bridge" yaml:"bridge"`
	ScenarioCfg ScenarioConfig `mapstructure:"scenario" yaml:"scenario"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Harness() HarnessConfig   { return c.HarnessCfg }
func (c *Config) Bridge() BridgeConfig     { return c.BridgeCfg }
func (c *Config) Scenario() ScenarioConfig { return c.ScenarioCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetHarnessBaseURL(u string)      { c.HarnessCfg.BaseURL = u }
func (c *Config) SetHarnessArtifactDir(d string)  { c.HarnessCfg.ArtifactDir = d }
func (c *Config) SetHarnessReportFormat(f string) { c.HarnessCfg.ReportFormat = f }
func (c *Config) SetHarnessReportPath(p string)   { c.HarnessCfg.ReportPath = p }
func (c *Config) SetHarnessParallel(n int)        { c.HarnessCfg.Parallel = n }
func (c *Config) SetScenarioFiltersOpen(b bool)   { c.ScenarioCfg.FiltersOpen = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool `mapstructure:"debug" yaml:"debug"`
	// ExecPath overrides chromedp's browser discovery.
	ExecPath string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args     []string       `mapstructure:"args" yaml:"args"`
	Viewport map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// HarnessConfig controls where scenarios point and how long each blocking operation may take.
type HarnessConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	ArtifactDir       string        `mapstructure:"artifact_dir" yaml:"artifact_dir"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	CaptureTimeout    time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	CloseTimeout      time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
	ReportFormat      string        `mapstructure:"report_format" yaml:"report_format"`
	ReportPath        string        `mapstructure:"report_path" yaml:"report_path"`
	Parallel          int           `mapstructure:"parallel" yaml:"parallel"`
}

// BridgeConfig shapes the injected stand-in for the host IPC object.
type BridgeConfig struct {
	// GlobalPath is the dotted path under window where the stand-in is installed.
	GlobalPath     string        `mapstructure:"global_path" yaml:"global_path"`
	BindingName    string        `mapstructure:"binding_name" yaml:"binding_name"`
	DynamicTimeout time.Duration `mapstructure:"dynamic_timeout" yaml:"dynamic_timeout"`
	ConsoleLog     bool          `mapstructure:"console_log" yaml:"console_log"`
}

// ScenarioConfig carries UI state the scenarios must not guess.
type ScenarioConfig struct {
	AppTitle     string `mapstructure:"app_title" yaml:"app_title"`
	FiltersOpen  bool   `mapstructure:"filters_open" yaml:"filters_open"`
	RowSelector  string `mapstructure:"row_selector" yaml:"row_selector"`
	PageSize     int    `mapstructure:"page_size" yaml:"page_size"`
	LoadMoreText string `mapstructure:"load_more_text" yaml:"load_more_text"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "bridgecheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})

	// -- Harness --
	v.SetDefault("harness.base_url", "http://localhost:5173")
	v.SetDefault("harness.artifact_dir", "verification")
	v.SetDefault("harness.launch_timeout", "30s")
	v.SetDefault("harness.navigation_timeout", "30s")
	v.SetDefault("harness.wait_timeout", "10s")
	v.SetDefault("harness.poll_interval", "100ms")
	v.SetDefault("harness.action_timeout", "5s")
	v.SetDefault("harness.capture_timeout", "15s")
	v.SetDefault("harness.close_timeout", "5s")
	v.SetDefault("harness.report_format", "text")
	v.SetDefault("harness.report_path", "")
	v.SetDefault("harness.parallel", 1)

	// -- Bridge --
	v.SetDefault("bridge.global_path", "electron.ipcRenderer")
	v.SetDefault("bridge.binding_name", "__bridgecheckEmit")
	v.SetDefault("bridge.dynamic_timeout", "5s")
	v.SetDefault("bridge.console_log", true)

	// -- Scenario --
	v.SetDefault("scenario.app_title", "Soundstarter")
	v.SetDefault("scenario.filters_open", true)
	v.SetDefault("scenario.row_selector", "div.group[draggable]")
	v.SetDefault("scenario.page_size", 50)
	v.SetDefault("scenario.load_more_text", "Cargar más")
}

// EnvPrefix is prepended to every environment variable override,
// e.g. BRIDGECHECK_HARNESS_BASE_URL.
const EnvPrefix = "BRIDGECHECK"

// BindEnvironment makes every configuration key overridable from the environment.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading ~ in every filesystem path setting. Call it
// again after overriding a path through a setter.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.HarnessCfg.ArtifactDir, &c.HarnessCfg.ReportPath, &c.BrowserCfg.ExecPath, &c.LoggerCfg.LogFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidReportFormats lists the formats understood by the reporting package.
var ValidReportFormats = []string{"text", "json", "junit"}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.HarnessCfg.Validate(); err != nil {
		return fmt.Errorf("harness configuration invalid: %w", err)
	}
	if err := c.BridgeCfg.Validate(); err != nil {
		return fmt.Errorf("bridge configuration invalid: %w", err)
	}
	if c.ScenarioCfg.PageSize <= 0 {
		return fmt.Errorf("scenario.page_size must be a positive integer")
	}
	return nil
}

// Validate checks the harness settings.
func (h *HarnessConfig) Validate() error {
	u, err := url.Parse(h.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", h.BaseURL)
	}
	if h.ArtifactDir == "" {
		return fmt.Errorf("artifact_dir is required")
	}
	timeouts := map[string]time.Duration{
		"launch_timeout":     h.LaunchTimeout,
		"navigation_timeout": h.NavigationTimeout,
		"wait_timeout":       h.WaitTimeout,
		"poll_interval":      h.PollInterval,
		"action_timeout":     h.ActionTimeout,
		"capture_timeout":    h.CaptureTimeout,
		"close_timeout":      h.CloseTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	if h.PollInterval >= h.WaitTimeout {
		return fmt.Errorf("poll_interval (%s) must be shorter than wait_timeout (%s)", h.PollInterval, h.WaitTimeout)
	}
	if h.Parallel <= 0 {
		return fmt.Errorf("parallel must be a positive integer")
	}
	if !isValidFormat(h.ReportFormat) {
		return fmt.Errorf("report_format must be one of %s", strings.Join(ValidReportFormats, ", "))
	}
	return nil
}

func isValidFormat(f string) bool {
	for _, v := range ValidReportFormats {
		if f == v {
			return true
		}
	}
	return false
}

// Validate checks the bridge settings.
func (b *BridgeConfig) Validate() error {
	if b.GlobalPath == "" {
		return fmt.Errorf("global_path is required")
	}
	for _, seg := range strings.Split(b.GlobalPath, ".") {
		if !identRe.MatchString(seg) {
			return fmt.Errorf("global_path segment %q is not a valid JavaScript identifier", seg)
		}
	}
	if !identRe.MatchString(b.BindingName) {
		return fmt.Errorf("binding_name %q is not a valid JavaScript identifier", b.BindingName)
	}
	if b.DynamicTimeout <= 0 {
		return fmt.Errorf("dynamic_timeout must be a positive duration")
	}
	return nil
}
