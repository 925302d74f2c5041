// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zhouzirui/chatbox/internal/config"
)

// Setup configures the global logger and returns it. When cfg.File is set,
// logs go to a rotating file; otherwise they go to console. A nil console
// discards logs that have no file to go to, which keeps full-screen UIs clean.
func Setup(cfg config.LogConfig, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "parse log level %q", cfg.Level)
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch {
	case cfg.File != "":
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     14,
		}
		out, closer = file, file
	case console != nil:
		out = console
		if cfg.Format == "console" {
			out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen, NoColor: !isTerminal(console)}
		}
	default:
		out = io.Discard
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
