package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig     `toml:"server"`
	Target      TargetConfig     `toml:"target"`
	Browser     BrowserConfig    `toml:"browser"`
	Verify      VerifyConfig     `toml:"verify"`
	Notify      NotifyConfig     `toml:"notify"`
	Screenshots ScreenshotConfig `toml:"screenshots"`
	Logging     LoggingConfig    `toml:"logging"`
	Schedule    ScheduleConfig   `toml:"schedule"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=1,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

// TargetConfig describes the site under test and the credentials used to
// drive it. Email and password have no defaults and must come from the
// config file or environment.
type TargetConfig struct {
	BaseURL       string `toml:"base_url" validate:"required,url"`
	LoginPath     string `toml:"login_path" validate:"required"`
	WorkspacePath string `toml:"workspace_path" validate:"required"` // URL fragment that marks the post-login listing view
	Email         string `toml:"email" validate:"required,email"`
	Password      string `toml:"password" validate:"required"`
	VideoFile     string `toml:"video_file" validate:"required"` // resolved to an absolute path during Validate
}

type BrowserConfig struct {
	Headless       bool   `toml:"headless"`
	ViewportWidth  int    `toml:"viewport_width"`
	ViewportHeight int    `toml:"viewport_height"`
	NoSandbox      bool   `toml:"no_sandbox"`
	TeardownGrace  string `toml:"teardown_grace"` // delay before closing a headful browser, e.g. "5s"
}

// VerifyConfig bounds the processing verification engine. All values are
// duration strings ("10s", "5m").
type VerifyConfig struct {
	PollInterval  string `toml:"poll_interval"`
	MaxWait       string `toml:"max_wait"`
	DiscoveryWait string `toml:"discovery_wait"`
	LabelWait     string `toml:"label_wait"`
	MarkerWait    string `toml:"marker_wait"`
}

type NotifyConfig struct {
	WebhookURL    string `toml:"webhook_url"`     // empty disables notifications
	PublicBaseURL string `toml:"public_base_url"` // used to build screenshot links in cards
	Timeout       string `toml:"timeout"`
}

type ScreenshotConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // time format for log lines
}

// ScheduleConfig enables unattended scheduled runs of a single scenario.
type ScheduleConfig struct {
	Enabled  bool   `toml:"enabled"`
	Cron     string `toml:"cron"`     // 6-field cron expression (with seconds)
	Scenario string `toml:"scenario"` // one of: login, upload, translate
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters live here; only user-facing settings belong in
// dubtest.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Target: TargetConfig{
			BaseURL:       "https://perso.ai",
			LoginPath:     "/ko/login",
			WorkspacePath: "/workspace",
			VideoFile:     "./test_videos/sample.mp4",
		},
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			NoSandbox:      true,
			TeardownGrace:  "5s", // only applies when headless = false
		},
		Verify: VerifyConfig{
			PollInterval:  "10s",
			MaxWait:       "5m",
			DiscoveryWait: "5s",
			LabelWait:     "2s",
			MarkerWait:    "500ms",
		},
		Notify: NotifyConfig{
			WebhookURL:    "", // user must provide a webhook URL to enable notifications
			PublicBaseURL: "http://localhost:8080",
			Timeout:       "10s",
		},
		Screenshots: ScreenshotConfig{
			Dir: "./screenshots",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Schedule: ScheduleConfig{
			Enabled:  false,
			Cron:     "0 0 6 * * *", // daily at 06:00 when enabled
			Scenario: "translate",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
// An empty path skips the file stage.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies DUBTEST_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("DUBTEST_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DUBTEST_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if baseURL := os.Getenv("DUBTEST_TARGET_URL"); baseURL != "" {
		config.Target.BaseURL = baseURL
	}
	if email := os.Getenv("DUBTEST_EMAIL"); email != "" {
		config.Target.Email = email
	}
	if password := os.Getenv("DUBTEST_PASSWORD"); password != "" {
		config.Target.Password = password
	}
	if videoFile := os.Getenv("DUBTEST_VIDEO_FILE"); videoFile != "" {
		config.Target.VideoFile = videoFile
	}

	if headless := os.Getenv("DUBTEST_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}

	if webhook := os.Getenv("DUBTEST_WEBHOOK_URL"); webhook != "" {
		config.Notify.WebhookURL = webhook
	}
	if publicBase := os.Getenv("DUBTEST_PUBLIC_BASE_URL"); publicBase != "" {
		config.Notify.PublicBaseURL = publicBase
	}

	if level := os.Getenv("DUBTEST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string, headless string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
}

// Validate checks the configuration eagerly at startup. The video file is
// resolved to an absolute path and must exist; a missing file is a hard
// failure before any scenario can run.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, value := range map[string]string{
		"browser.teardown_grace": c.Browser.TeardownGrace,
		"verify.poll_interval":   c.Verify.PollInterval,
		"verify.max_wait":        c.Verify.MaxWait,
		"verify.discovery_wait":  c.Verify.DiscoveryWait,
		"verify.label_wait":      c.Verify.LabelWait,
		"verify.marker_wait":     c.Verify.MarkerWait,
		"notify.timeout":         c.Notify.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	absPath, err := filepath.Abs(c.Target.VideoFile)
	if err != nil {
		return fmt.Errorf("failed to resolve video file path: %w", err)
	}
	c.Target.VideoFile = absPath
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("test video not found: %s", absPath)
	}

	if c.Schedule.Enabled && !IsKnownScenario(c.Schedule.Scenario) {
		return fmt.Errorf("unknown scheduled scenario: %q", c.Schedule.Scenario)
	}

	return nil
}

// Duration parses a duration string, falling back when empty or invalid.
// Config validation rejects invalid values at startup, so the fallback only
// covers zero-value configs constructed in tests.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ScenarioNames lists the scenario names the harness knows how to run.
var ScenarioNames = []string{"login", "upload", "translate"}

// IsKnownScenario reports whether name is a runnable scenario.
func IsKnownScenario(name string) bool {
	for _, n := range ScenarioNames {
		if n == name {
			return true
		}
	}
	return false
}
