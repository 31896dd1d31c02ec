package session

import (
	"testing"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		SCID:          1,
		VideoEnabled:  true,
		VideoCodec:    "h264",
		AudioEnabled:  true,
		AudioCodec:    "opus",
		ServerVersion: "3.1",
	}.WithDefaults()
}

func TestValidateAcceptsDefaultedConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsOutOfRangeSCID(t *testing.T) {
	cfg := validConfig()
	cfg.SCID = 1 << 31
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errs.IsConfig(err))
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose-ish"
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errs.IsConfig(err))
}

func TestValidateAcceptsEveryRecognizedLogLevel(t *testing.T) {
	for _, level := range []string{"verbose", "debug", "info", "warn", "warning", "error"} {
		cfg := validConfig()
		cfg.LogLevel = level
		require.NoError(t, cfg.Validate(), "level %q should validate", level)
	}
}

func TestValidateRejectsUnknownVideoCodec(t *testing.T) {
	cfg := validConfig()
	cfg.VideoCodec = "vp9"
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errs.IsConfig(err))
}

func TestValidateRejectsUnknownAudioCodec(t *testing.T) {
	cfg := validConfig()
	cfg.AudioCodec = "mp3"
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errs.IsConfig(err))
}

func TestValidateRejectsMissingServerVersion(t *testing.T) {
	cfg := validConfig()
	cfg.ServerVersion = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errs.IsConfig(err))
}
