// Package logging wires the teacher's zerolog-based global logger and
// exposes the underlying io.Writer so the HTTP layer's structured
// request logger (slog, via go-chi/httplog) can write to the same
// sink.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"witnessgate/internal/config"
)

var (
	mu     sync.Mutex
	writer io.Writer = os.Stdout
)

// Init configures the global zerolog logger per cfg: level, console
// pretty-printing for local development, sampling for high-volume
// deployments, and an optional size-limited log file that is truncated
// to empty once a write would take it past MaxMB (no rotated copies
// are kept).
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		if w, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB); err == nil {
			output = w
		} else {
			log.Error().Err(err).Str("path", cfg.File).Msg("logging: open log file failed, falling back to stdout")
		}
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	mu.Lock()
	writer = output
	mu.Unlock()

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the sink Init configured, for collaborators (the
// management surface's request logger) that need to share it.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}
