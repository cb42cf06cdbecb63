package logger

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides any level given on the command line.
const EnvLogLevel = "AUDITGATE_LOG_LEVEL"

// LogOutputWriter is where log output goes. The report itself is written to stdout.
var LogOutputWriter io.Writer = os.Stderr

// CliCompactLogger replaces the global logger with a compact console logger.
// Colours are only used when w is a terminal.
func CliCompactLogger(w io.Writer) {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      noColor,
		PartsExclude: []string{zerolog.TimestampFieldName},
	})
}

// GetEnvLogLevel returns the level set through the environment, if any.
func GetEnvLogLevel() (string, bool) {
	level, ok := os.LookupEnv(EnvLogLevel)
	if !ok || strings.TrimSpace(level) == "" {
		return "", false
	}
	return level, true
}

// Set sets the global log level. Unknown names fall back to info.
func Set(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
