package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_BLANK", "   ")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "1m30s")
	t.Setenv("TEST_SECONDS", "15")
	t.Setenv("TEST_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("TEST_COMMAS", ", ,")

	assert.Equal(t, "fallback", getEnv("TEST_BLANK", "fallback"))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET", "fallback"))
	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvAsInt("TEST_BAD_INT", 1))
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, 15*time.Second, getEnvAsDuration("TEST_SECONDS", time.Second))
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, getEnvAsStringSlice("TEST_BROKERS", nil))
	assert.Equal(t, []string{"default"}, getEnvAsStringSlice("TEST_COMMAS", []string{"default"}))
}
