package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitSetsGlobalLevelFromValidName(t *testing.T) {
	Init("warn", true)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInitFallsBackToInfoOnInvalidLevelName(t *testing.T) {
	Init("not-a-level", true)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInitLevelNameIsCaseInsensitive(t *testing.T) {
	Init("ERROR", true)
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

func TestNamedReturnsUsableLogger(t *testing.T) {
	Init("info", true)
	logger := Named("fetcher")
	assert.NotPanics(t, func() { logger.Info().Msg("test") })
}
