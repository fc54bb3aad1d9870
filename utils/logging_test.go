package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerJSON(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	initLogger(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Str("image", "covers/a.png").Msg("image cleanup failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "covers/a.png", line["image"])
}

func TestInitLoggerUnknownLevelIsInfo(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	initLogger(&bytes.Buffer{}, "chatty", "console")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
