package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// SetWriter redirects log output. Tests use it to capture emitted events;
// pass os.Stdout to restore the default.
func SetWriter(w io.Writer) {
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	logger.Info().Fields(fields).Msg(msg)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	logger.Error().Fields(fields).Msg(msg)
}

// TruncateText bounds free text before it is attached to a log field.
// Extracted document text can hold sensitive content; only a short prefix
// ever reaches log storage.
func TruncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
