package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base URL", func(c *Config) { c.Target.BaseURL = "" }},
		{"missing socket URL", func(c *Config) { c.Target.SocketURL = "" }},
		{"zero rooms", func(c *Config) { c.Load.Rooms = 0 }},
		{"zero students", func(c *Config) { c.Load.StudentsPerRoom = 0 }},
		{"zero quizzes", func(c *Config) { c.Load.QuizCount = 0 }},
		{"multi-quiz without interval", func(c *Config) { c.Load.QuizCount = 3; c.Load.QuizInterval = 0 }},
		{"negative head start", func(c *Config) { c.Timing.TeacherHeadStart = -time.Second }},
		{"retry enabled without budget", func(c *Config) { c.Retry.MaxRetries = 0 }},
		{"retry enabled without delay", func(c *Config) { c.Retry.BaseDelay = 0 }},
		{"missing report path", func(c *Config) { c.Report.DatabasePath = "" }},
		{"metrics enabled without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.ListenAddr = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("CLASSLOAD_BASE_URL", "https://stage.example.com")
	t.Setenv("CLASSLOAD_ROOMS", "4")
	t.Setenv("CLASSLOAD_STUDENTS_PER_ROOM", "40")
	t.Setenv("CLASSLOAD_QUIZ_COUNT", "3")
	t.Setenv("CLASSLOAD_QUIZ_INTERVAL", "4m")
	t.Setenv("CLASSLOAD_TEACHER_HEAD_START", "8s")
	t.Setenv("CLASSLOAD_RETRY_ENABLED", "false")
	t.Setenv("CLASSLOAD_METRICS_ENABLED", "true")

	cfg := LoadFromEnv()
	assert.Equal(t, "https://stage.example.com", cfg.Target.BaseURL)
	assert.Equal(t, 4, cfg.Load.Rooms)
	assert.Equal(t, 40, cfg.Load.StudentsPerRoom)
	assert.Equal(t, 3, cfg.Load.QuizCount)
	assert.Equal(t, 4*time.Minute, cfg.Load.QuizInterval)
	assert.Equal(t, 8*time.Second, cfg.Timing.TeacherHeadStart)
	assert.False(t, cfg.Retry.Enabled)
	assert.True(t, cfg.Metrics.Enabled)

	// Untouched fields keep their defaults.
	assert.Equal(t, "./classload.db", cfg.Report.DatabasePath)
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("CLASSLOAD_ROOMS", "not-a-number")
	t.Setenv("CLASSLOAD_QUIZ_INTERVAL", "soon")

	cfg := LoadFromEnv()
	assert.Equal(t, DefaultConfig().Load.Rooms, cfg.Load.Rooms)
	assert.Equal(t, DefaultConfig().Load.QuizInterval, cfg.Load.QuizInterval)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classload.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"target": {"base_url": "https://load.example.com", "teacher_token": "tt"},
		"load": {"rooms": 2, "students_per_room": 25, "quiz_count": 2, "quiz_interval": "5m"},
		"timing": {"answer_wait_override": "45s"},
		"retry": {"enabled": false},
		"report": {"database_path": "/tmp/run.db"}
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://load.example.com", cfg.Target.BaseURL)
	assert.Equal(t, "tt", cfg.Target.TeacherToken)
	assert.Equal(t, 2, cfg.Load.Rooms)
	assert.Equal(t, 25, cfg.Load.StudentsPerRoom)
	assert.Equal(t, 5*time.Minute, cfg.Load.QuizInterval)
	assert.Equal(t, 45*time.Second, cfg.Timing.AnswerWaitOverride)
	assert.False(t, cfg.Retry.Enabled)
	assert.Equal(t, "/tmp/run.db", cfg.Report.DatabasePath)

	// Defaults survive where the file is silent.
	assert.Equal(t, DefaultConfig().Target.SocketURL, cfg.Target.SocketURL)
	assert.Equal(t, DefaultConfig().Retry.MaxRetries, cfg.Retry.MaxRetries)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeConfigFile(t, `{not json`)
	_, err = LoadFromFile(path)
	assert.Error(t, err)

	// Empty strings in the file fall back to defaults, so this stays valid.
	path = writeConfigFile(t, `{"target": {"base_url": ""}}`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithPrecedence(t *testing.T) {
	t.Setenv("CLASSLOAD_ROOMS", "7")

	// No file: environment wins over defaults.
	cfg := LoadWithPrecedence("")
	assert.Equal(t, 7, cfg.Load.Rooms)

	// File present: file wins.
	path := writeConfigFile(t, `{"load": {"rooms": 3}}`)
	cfg = LoadWithPrecedence(path)
	assert.Equal(t, 3, cfg.Load.Rooms)

	// Broken file degrades to the environment result.
	cfg = LoadWithPrecedence(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, 7, cfg.Load.Rooms)
}

func TestPolicyConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timing.AnswerWaitOverride = 40 * time.Second
	cfg.Retry.MaxRetries = 5

	tp := cfg.TimingPolicy()
	assert.Equal(t, 40*time.Second, tp.AnswerWaitOverride)
	assert.Equal(t, cfg.Timing.TeacherHeadStart, tp.TeacherHeadStart)

	rp := cfg.RetryPolicy()
	assert.True(t, rp.Enabled)
	assert.Equal(t, 5, rp.MaxRetries)
	assert.Equal(t, 2*time.Second, rp.BaseDelay)
}
