package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MAX_TIME_SPENT_DELTA_SECONDS", "")
	t.Setenv("DEFAULT_MIN_WATCH_PERCENT", "")

	LoadConfig()

	assert.Equal(t, "3000", AppConfig.Port)
	assert.Equal(t, 300, AppConfig.MaxTimeSpentDeltaSeconds)
	assert.Equal(t, 80.0, AppConfig.DefaultMinWatchPercent)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MAX_TIME_SPENT_DELTA_SECONDS", "90")
	t.Setenv("DEFAULT_MIN_WATCH_PERCENT", "150")

	LoadConfig()

	assert.Equal(t, "sqlite", AppConfig.DBDriver)
	assert.Equal(t, 90, AppConfig.MaxTimeSpentDeltaSeconds)
	assert.Equal(t, 80.0, AppConfig.DefaultMinWatchPercent, "out of range threshold falls back to default")
}

func TestGetEnvIntInvalid(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
}
