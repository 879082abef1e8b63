// backend-go/pkg/logger/logger.go
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Setup configures the global zerolog logger. In release mode output is
// plain JSON for log collectors; otherwise a colored console writer.
func Setup(mode, levelStr string) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(os.Stdout)
	if mode != "release" {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = logger.
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	if err != nil {
		log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
	}
}
