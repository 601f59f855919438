// internal/logger/logger_test.go
package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Levels(t *testing.T) {
	require.NoError(t, Init(Config{Level: "warn"}))
	assert.Equal(t, zerolog.WarnLevel, Get().GetLevel())

	require.NoError(t, Init(Config{Level: "error", Debug: true}))
	assert.Equal(t, zerolog.DebugLevel, Get().GetLevel())

	require.Error(t, Init(Config{Level: "loud"}))

	require.NoError(t, Init(Config{}))
	assert.Equal(t, zerolog.InfoLevel, Get().GetLevel())
}

func TestNewTestLogger_Disabled(t *testing.T) {
	l := NewTestLogger()
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
}
