// Package config defines the run configuration surface: flags, config
// files, defaults and validation. The orchestration core consumes the
// resulting Config purely as parameters.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every knob for one bot run.
type Config struct {
	TargetURL   string `mapstructure:"target"`
	SessionCode string `mapstructure:"session_code"`

	Bots       int           `mapstructure:"bots"`
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	JoinRate   int           `mapstructure:"join_rate"`

	QuestionDelay    time.Duration `mapstructure:"question_delay"`
	AnswerTimeout    time.Duration `mapstructure:"answer_timeout"`
	StartTimeout     time.Duration `mapstructure:"start_timeout"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	AccuracyMin float64       `mapstructure:"accuracy_min"`
	AccuracyMax float64       `mapstructure:"accuracy_max"`
	ThinkMin    time.Duration `mapstructure:"think_min"`
	ThinkMax    time.Duration `mapstructure:"think_max"`

	Seed       int64  `mapstructure:"seed"`
	RosterPath string `mapstructure:"roster_path"`
	RosterType string `mapstructure:"roster_type"`

	JSONOutput bool   `mapstructure:"json_output"`
	Dashboard  bool   `mapstructure:"dashboard"`
	LogErrors  bool   `mapstructure:"log_errors"`
	ConfigFile string `mapstructure:"-"`

	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Protocol    string `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

// Enabled reports whether traces should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// SessionURL builds the per-bot websocket endpoint for the given user.
func (c Config) SessionURL(userID string) string {
	base := strings.TrimRight(c.TargetURL, "/")
	return fmt.Sprintf("%s/%s?user_id=%s", base, c.SessionCode, url.QueryEscape(userID))
}

// ValidationError aggregates every configuration problem found.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns the individual problems.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration before any connection is attempted.
// A non-nil result is fatal to the whole run.
func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil {
		issues = append(issues, fmt.Sprintf("target is not a valid URL: %v", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		issues = append(issues, fmt.Sprintf("target scheme must be ws or wss, got %q", u.Scheme))
	}

	if strings.TrimSpace(c.SessionCode) == "" {
		issues = append(issues, "session code is required")
	}

	if c.Bots < 1 {
		issues = append(issues, "bots must be >= 1")
	}
	if c.BatchSize < 1 {
		issues = append(issues, "batch-size must be >= 1")
	}
	if c.BatchDelay < 0 {
		issues = append(issues, "batch-delay must be >= 0")
	}
	if c.JoinRate < 0 {
		issues = append(issues, "join-rate must be >= 0")
	}
	if c.QuestionDelay < 0 {
		issues = append(issues, "question-delay must be >= 0")
	}
	if c.AnswerTimeout < 0 {
		issues = append(issues, "answer-timeout must be >= 0")
	}
	if c.StartTimeout < 0 {
		issues = append(issues, "start-timeout must be >= 0")
	}
	if c.GracePeriod < 0 {
		issues = append(issues, "grace-period must be >= 0")
	}
	if c.HandshakeTimeout < 0 {
		issues = append(issues, "handshake-timeout must be >= 0")
	}

	if c.AccuracyMin < 0 || c.AccuracyMin > 1 {
		issues = append(issues, "accuracy-min must be within [0, 1]")
	}
	if c.AccuracyMax < 0 || c.AccuracyMax > 1 {
		issues = append(issues, "accuracy-max must be within [0, 1]")
	}
	if c.AccuracyMin > c.AccuracyMax {
		issues = append(issues, "accuracy-min must not exceed accuracy-max")
	}
	if c.ThinkMin < 0 {
		issues = append(issues, "think-min must be >= 0")
	}
	if c.ThinkMin > c.ThinkMax {
		issues = append(issues, "think-min must not exceed think-max")
	}

	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	if strings.TrimSpace(c.RosterPath) != "" {
		switch strings.ToLower(strings.TrimSpace(c.RosterType)) {
		case "csv", "json":
		case "":
			issues = append(issues, "roster-type is required when roster-path is specified")
		default:
			issues = append(issues, fmt.Sprintf("roster-type must be 'csv' or 'json', got %q", c.RosterType))
		}
	}

	if c.Tracing.Enabled() {
		switch strings.ToLower(strings.TrimSpace(c.Tracing.Protocol)) {
		case "", "grpc", "http":
		default:
			issues = append(issues, fmt.Sprintf("tracing.protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
		}
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
