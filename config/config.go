// Package config resolves a session's defaults from environment
// variables and an optional config file, and renders them into a
// session.Config.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/scrcpygo/mirror/internal/session"
)

const (
	// DefaultServerVersion is used when SCRCPY_MIRROR_SERVER_VERSION is unset.
	DefaultServerVersion = "3.1"
	envPrefix            = "SCRCPY_MIRROR"
)

var v *viper.Viper

func init() {
	v = viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("server_version", DefaultServerVersion)
	v.SetDefault("video.enabled", true)
	v.SetDefault("video.codec", "h264")
	v.SetDefault("video.max_size", 0)
	v.SetDefault("video.bit_rate", 8_000_000)
	v.SetDefault("video.max_fps", 0)
	v.SetDefault("audio.enabled", true)
	v.SetDefault("audio.codec", "opus")
	v.SetDefault("control.enabled", true)
	v.SetDefault("tunnel_forward", false)
	v.SetDefault("channel_capacity", 64)
	v.SetDefault("max_payload_bytes", 0)
	v.SetDefault("shutdown_grace_ms", 2000)
	v.SetDefault("home", xdgHome())

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.BindEnv("log_level")
	v.BindEnv("server_version")
	v.BindEnv("video.enabled")
	v.BindEnv("video.codec")
	v.BindEnv("video.max_size")
	v.BindEnv("video.bit_rate")
	v.BindEnv("video.max_fps")
	v.BindEnv("audio.enabled")
	v.BindEnv("audio.codec")
	v.BindEnv("control.enabled")
	v.BindEnv("tunnel_forward")
	v.BindEnv("channel_capacity")
	v.BindEnv("max_payload_bytes")
	v.BindEnv("shutdown_grace_ms")
	v.BindEnv("home")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range []string{".", "$HOME/.scrcpy-mirror", "/etc/scrcpy-mirror"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("fatal error reading config file: %s", err))
		}
	}
}

func xdgHome() string {
	return xdg.Home + "/.scrcpy-mirror"
}

// Home returns the local directory used to cache the server jar and any
// per-run state.
func Home() string { return v.GetString("home") }

// ServerVersion returns the scrcpy server build the deployed jar
// reports as; it is passed to the server as its first argument.
func ServerVersion() string { return v.GetString("server_version") }

// SessionDefaults builds a session.Config from the resolved viper
// layer. scid is supplied by the caller (one per concurrent session,
// not configuration) rather than defaulted here.
func SessionDefaults(scid uint32) session.Config {
	cfg := session.Config{
		SCID:            scid,
		LogLevel:        v.GetString("log_level"),
		ServerVersion:   v.GetString("server_version"),
		VideoEnabled:    v.GetBool("video.enabled"),
		VideoCodec:      v.GetString("video.codec"),
		MaxSize:         v.GetInt("video.max_size"),
		VideoBitRate:    v.GetInt("video.bit_rate"),
		MaxFPS:          v.GetInt("video.max_fps"),
		AudioEnabled:    v.GetBool("audio.enabled"),
		AudioCodec:      v.GetString("audio.codec"),
		ControlEnabled:  v.GetBool("control.enabled"),
		TunnelForward:   v.GetBool("tunnel_forward"),
		ChannelCapacity: v.GetInt("channel_capacity"),
		MaxPayloadBytes: v.GetInt("max_payload_bytes"),
		ShutdownGrace:   time.Duration(v.GetInt("shutdown_grace_ms")) * time.Millisecond,
	}
	return cfg.WithDefaults()
}
