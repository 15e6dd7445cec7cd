package progress

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FileLog writes every log line as a JSON record. Level is taken from the glyph.
type FileLog struct {
	logger zerolog.Logger
	closer io.Closer
}

// OpenFileLog appends to path, creating it if needed.
func OpenFileLog(path, runID, script string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", path)
	}
	fl := NewFileLog(f, runID, script)
	fl.closer = f
	return fl, nil
}

// NewFileLog logs to w without taking ownership of it.
func NewFileLog(w io.Writer, runID, script string) *FileLog {
	lg := zerolog.New(w).With().Timestamp().Str("run", runID).Str("script", script).Logger()
	return &FileLog{logger: lg}
}

func (f *FileLog) Log(msg string) {
	text := strings.TrimSpace(Strip(msg))
	if text == "" {
		return
	}
	switch LevelOf(text) {
	case Error:
		f.logger.Error().Msg(text)
	case Warn:
		f.logger.Warn().Msg(text)
	default:
		f.logger.Info().Msg(text)
	}
}

func (f *FileLog) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
