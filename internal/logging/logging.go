// Package logging sets up the zerolog logger shared by the walletperm server
// and hands out component loggers to the manager, the HTTP layer and the
// local wallet.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// Logger is the root logger. Component loggers are derived from it.
var Logger zerolog.Logger

type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config holds logger configuration.
type Config struct {
	Level  Level
	Output io.Writer // defaults to os.Stderr
	Pretty bool
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Output: os.Stderr}
}

// FromConfig derives the logger setup from the "log" section of
// walletperm.json. A non-empty level, typically the --log-level flag, takes
// precedence over the file.
func FromConfig(lc *types.LogConfig, level string) Config {
	cfg := DefaultConfig()
	if lc != nil {
		if level == "" {
			level = lc.Level
		}
		cfg.Pretty = lc.Pretty
	}
	if level != "" {
		cfg.Level = ParseLevel(level)
	}
	return cfg
}

// Init replaces the root logger. Loggers taken from Component before the
// call keep writing through the previous one.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.Kitchen}
	}
	Logger = zerolog.New(output).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel maps DEBUG, INFO, WARN (or WARNING) and ERROR, in any case, to
// a level. Anything else is InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Component returns a child of the root logger tagged with name, such as
// "permission", "server" or "wallet".
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func init() {
	Init(DefaultConfig())
}
