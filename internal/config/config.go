// Package config is the system-wide settings coordinator: typed runtime
// configuration with defaults, environment overrides, and an optional
// JSON file, in that precedence order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"classload/internal/retry"
	"classload/internal/timing"
)

// Config carries every tunable of a load run.
type Config struct {
	Target  *TargetConfig  `json:"target"`
	Load    *LoadConfig    `json:"load"`
	Timing  *TimingConfig  `json:"timing"`
	Retry   *RetryConfig   `json:"retry"`
	Report  *ReportConfig  `json:"report"`
	Metrics *MetricsConfig `json:"metrics"`
}

// TargetConfig locates and authenticates against the service under test.
type TargetConfig struct {
	BaseURL      string `json:"base_url"`
	SocketURL    string `json:"socket_url"`
	TeacherToken string `json:"teacher_token"`
	CollectionID string `json:"collection_id"`
	OrgID        string `json:"org_id"`
	TeacherName  string `json:"teacher_name"`
	Region       string `json:"region"`
}

// LoadConfig shapes the simulated classroom population.
type LoadConfig struct {
	Rooms           int           `json:"rooms"`
	StudentsPerRoom int           `json:"students_per_room"`
	QuizCount       int           `json:"quiz_count"`
	QuizInterval    time.Duration `json:"quiz_interval"`
	StartJitterMax  time.Duration `json:"start_jitter_max"`
}

// TimingConfig feeds the per-room delay plan.
type TimingConfig struct {
	QuizCreateDelayOverride time.Duration `json:"quiz_create_delay_override"`
	AnswerWaitOverride      time.Duration `json:"answer_wait_override"`
	TeacherHeadStart        time.Duration `json:"teacher_head_start"`
	StudentSessionTime      time.Duration `json:"student_session_time"`
}

// RetryConfig bounds student reconnection attempts.
type RetryConfig struct {
	Enabled    bool          `json:"enabled"`
	MaxRetries int           `json:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"`
}

// ReportConfig controls end-of-run persistence.
type ReportConfig struct {
	DatabasePath string `json:"database_path"`
}

// MetricsConfig controls the live metrics endpoint.
type MetricsConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

// DefaultConfig returns a runnable configuration pointed at a local
// service: one small room, one quiz, report next to the binary.
func DefaultConfig() *Config {
	return &Config{
		Target: &TargetConfig{
			BaseURL:     "http://localhost:8080",
			SocketURL:   "http://localhost:8080/socket.io/",
			TeacherName: "load-teacher",
			Region:      "us",
		},
		Load: &LoadConfig{
			Rooms:           1,
			StudentsPerRoom: 10,
			QuizCount:       1,
			QuizInterval:    3 * time.Minute,
			StartJitterMax:  3 * time.Second,
		},
		Timing: &TimingConfig{
			TeacherHeadStart:   5 * time.Second,
			StudentSessionTime: 2 * time.Minute,
		},
		Retry: &RetryConfig{
			Enabled:    true,
			MaxRetries: 3,
			BaseDelay:  2 * time.Second,
		},
		Report: &ReportConfig{
			DatabasePath: "./classload.db",
		},
		Metrics: &MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9099",
		},
	}
}

// Validate rejects configurations that would fail mid-run.
func (c *Config) Validate() error {
	if c.Target == nil || c.Target.BaseURL == "" {
		return fmt.Errorf("target base URL is required")
	}
	if c.Target.SocketURL == "" {
		return fmt.Errorf("target socket URL is required")
	}
	if c.Load == nil || c.Load.Rooms <= 0 {
		return fmt.Errorf("room count must be positive")
	}
	if c.Load.StudentsPerRoom <= 0 {
		return fmt.Errorf("students per room must be positive")
	}
	if c.Load.QuizCount <= 0 {
		return fmt.Errorf("quiz count must be positive")
	}
	if c.Load.QuizCount > 1 && c.Load.QuizInterval <= 0 {
		return fmt.Errorf("quiz interval must be positive for multi-quiz runs")
	}
	if c.Timing == nil {
		return fmt.Errorf("timing configuration is required")
	}
	if c.Timing.TeacherHeadStart < 0 {
		return fmt.Errorf("teacher head start cannot be negative")
	}
	if c.Retry == nil {
		return fmt.Errorf("retry configuration is required")
	}
	if c.Retry.Enabled && c.Retry.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive when retry is enabled")
	}
	if c.Retry.Enabled && c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive when retry is enabled")
	}
	if c.Report == nil || c.Report.DatabasePath == "" {
		return fmt.Errorf("report database path is required")
	}
	if c.Metrics == nil {
		return fmt.Errorf("metrics configuration is required")
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}
	return nil
}

// TimingPolicy converts to the timing package's input.
func (c *Config) TimingPolicy() timing.Config {
	return timing.Config{
		QuizCreateDelayOverride: c.Timing.QuizCreateDelayOverride,
		AnswerWaitOverride:      c.Timing.AnswerWaitOverride,
		TeacherHeadStart:        c.Timing.TeacherHeadStart,
		StudentSessionTime:      c.Timing.StudentSessionTime,
	}
}

// RetryPolicy converts to the retry package's input.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		Enabled:    c.Retry.Enabled,
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
	}
}

// LoadFromEnv returns the defaults with CLASSLOAD_* environment
// variables applied. Unparseable values fall back silently so a bad
// variable never takes the harness down.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("CLASSLOAD_BASE_URL", &config.Target.BaseURL)
	setString("CLASSLOAD_SOCKET_URL", &config.Target.SocketURL)
	setString("CLASSLOAD_TEACHER_TOKEN", &config.Target.TeacherToken)
	setString("CLASSLOAD_COLLECTION_ID", &config.Target.CollectionID)
	setString("CLASSLOAD_ORG_ID", &config.Target.OrgID)
	setString("CLASSLOAD_TEACHER_NAME", &config.Target.TeacherName)
	setString("CLASSLOAD_REGION", &config.Target.Region)

	setInt("CLASSLOAD_ROOMS", &config.Load.Rooms)
	setInt("CLASSLOAD_STUDENTS_PER_ROOM", &config.Load.StudentsPerRoom)
	setInt("CLASSLOAD_QUIZ_COUNT", &config.Load.QuizCount)
	setDuration("CLASSLOAD_QUIZ_INTERVAL", &config.Load.QuizInterval)
	setDuration("CLASSLOAD_START_JITTER_MAX", &config.Load.StartJitterMax)

	setDuration("CLASSLOAD_QUIZ_CREATE_DELAY", &config.Timing.QuizCreateDelayOverride)
	setDuration("CLASSLOAD_ANSWER_WAIT", &config.Timing.AnswerWaitOverride)
	setDuration("CLASSLOAD_TEACHER_HEAD_START", &config.Timing.TeacherHeadStart)
	setDuration("CLASSLOAD_STUDENT_SESSION_TIME", &config.Timing.StudentSessionTime)

	setBool("CLASSLOAD_RETRY_ENABLED", &config.Retry.Enabled)
	setInt("CLASSLOAD_RETRY_MAX", &config.Retry.MaxRetries)
	setDuration("CLASSLOAD_RETRY_BASE_DELAY", &config.Retry.BaseDelay)

	setString("CLASSLOAD_REPORT_DB", &config.Report.DatabasePath)

	setBool("CLASSLOAD_METRICS_ENABLED", &config.Metrics.Enabled)
	setString("CLASSLOAD_METRICS_ADDR", &config.Metrics.ListenAddr)

	return config
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	Target *TargetConfig `json:"target"`
	Load   *struct {
		Rooms           int    `json:"rooms"`
		StudentsPerRoom int    `json:"students_per_room"`
		QuizCount       int    `json:"quiz_count"`
		QuizInterval    string `json:"quiz_interval"`
		StartJitterMax  string `json:"start_jitter_max"`
	} `json:"load"`
	Timing *struct {
		QuizCreateDelayOverride string `json:"quiz_create_delay_override"`
		AnswerWaitOverride      string `json:"answer_wait_override"`
		TeacherHeadStart        string `json:"teacher_head_start"`
		StudentSessionTime      string `json:"student_session_time"`
	} `json:"timing"`
	Retry *struct {
		Enabled    *bool  `json:"enabled"`
		MaxRetries int    `json:"max_retries"`
		BaseDelay  string `json:"base_delay"`
	} `json:"retry"`
	Report  *ReportConfig `json:"report"`
	Metrics *struct {
		Enabled    *bool  `json:"enabled"`
		ListenAddr string `json:"listen_addr"`
	} `json:"metrics"`
}

// LoadFromFile overlays a JSON file onto the defaults and validates the
// result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	config := DefaultConfig()

	parseDuration := func(raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		if d, err := time.ParseDuration(raw); err == nil {
			*dst = d
		}
	}

	if file.Target != nil {
		if file.Target.BaseURL != "" {
			config.Target.BaseURL = file.Target.BaseURL
		}
		if file.Target.SocketURL != "" {
			config.Target.SocketURL = file.Target.SocketURL
		}
		if file.Target.TeacherToken != "" {
			config.Target.TeacherToken = file.Target.TeacherToken
		}
		if file.Target.CollectionID != "" {
			config.Target.CollectionID = file.Target.CollectionID
		}
		if file.Target.OrgID != "" {
			config.Target.OrgID = file.Target.OrgID
		}
		if file.Target.TeacherName != "" {
			config.Target.TeacherName = file.Target.TeacherName
		}
		if file.Target.Region != "" {
			config.Target.Region = file.Target.Region
		}
	}

	if file.Load != nil {
		if file.Load.Rooms > 0 {
			config.Load.Rooms = file.Load.Rooms
		}
		if file.Load.StudentsPerRoom > 0 {
			config.Load.StudentsPerRoom = file.Load.StudentsPerRoom
		}
		if file.Load.QuizCount > 0 {
			config.Load.QuizCount = file.Load.QuizCount
		}
		parseDuration(file.Load.QuizInterval, &config.Load.QuizInterval)
		parseDuration(file.Load.StartJitterMax, &config.Load.StartJitterMax)
	}

	if file.Timing != nil {
		parseDuration(file.Timing.QuizCreateDelayOverride, &config.Timing.QuizCreateDelayOverride)
		parseDuration(file.Timing.AnswerWaitOverride, &config.Timing.AnswerWaitOverride)
		parseDuration(file.Timing.TeacherHeadStart, &config.Timing.TeacherHeadStart)
		parseDuration(file.Timing.StudentSessionTime, &config.Timing.StudentSessionTime)
	}

	if file.Retry != nil {
		if file.Retry.Enabled != nil {
			config.Retry.Enabled = *file.Retry.Enabled
		}
		if file.Retry.MaxRetries > 0 {
			config.Retry.MaxRetries = file.Retry.MaxRetries
		}
		parseDuration(file.Retry.BaseDelay, &config.Retry.BaseDelay)
	}

	if file.Report != nil && file.Report.DatabasePath != "" {
		config.Report.DatabasePath = file.Report.DatabasePath
	}

	if file.Metrics != nil {
		if file.Metrics.Enabled != nil {
			config.Metrics.Enabled = *file.Metrics.Enabled
		}
		if file.Metrics.ListenAddr != "" {
			config.Metrics.ListenAddr = file.Metrics.ListenAddr
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// LoadWithPrecedence resolves configuration as file > environment >
// defaults. A missing or broken file degrades to environment/defaults.
func LoadWithPrecedence(path string) *Config {
	config := LoadFromEnv()

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}

	return config
}
