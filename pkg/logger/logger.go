// pkg/logger/logger.go
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// stdout is reserved for command results
	Log = Log.Level(zerolog.InfoLevel)
	SetOutput(os.Stderr, FormatConsole)
}

// SetOutput points the global logger at w, either as human readable console
// lines or as one JSON object per line.
func SetOutput(w io.Writer, format string) {
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	Log = zerolog.New(w).
		Level(Log.GetLevel()).
		With().
		Timestamp().
		Caller().
		Logger()
	log.Logger = Log
}

// SetLevel sets the log level. Gin modes map onto zerolog levels so the
// server can pass its mode straight through.
func SetLevel(levelStr string) {
	switch levelStr {
	case "release":
		levelStr = "info"
	case "test":
		levelStr = "warn"
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
	log.Logger = Log
}
