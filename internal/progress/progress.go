// Package progress carries run output to a detailed log sink and a condensed status panel.
//
// Messages use blessed-style color markup ({green-fg}...{/green-fg}) and a fixed glyph per
// outcome: ✔ success, ⚠ warning, ✖ error, ℹ info. Sinks that cannot render markup strip it.
package progress

import (
	"fmt"
	"regexp"
	"strings"
)

// ProgressLog receives the detailed, append-only run log.
type ProgressLog interface {
	Log(msg string)
}

// StatusPanel receives short human-facing status lines.
type StatusPanel interface {
	Update(msg string)
}

// LogFunc adapts a plain function to ProgressLog.
type LogFunc func(string)

func (f LogFunc) Log(msg string) { f(msg) }

// PanelFunc adapts a plain function to StatusPanel.
type PanelFunc func(string)

func (f PanelFunc) Update(msg string) { f(msg) }

// Level selects glyph and color of a message.
type Level int

const (
	Plain Level = iota
	Info
	Success
	Warn
	Error
)

const (
	GlyphSuccess = "✔"
	GlyphWarn    = "⚠"
	GlyphError   = "✖"
	GlyphInfo    = "ℹ"
)

var markupRe = regexp.MustCompile(`\{.*?\}`)

// Strip removes {...} color markup.
func Strip(msg string) string { return markupRe.ReplaceAllString(msg, "") }

// Format wraps msg into markup for the given level.
func Format(l Level, msg string) string {
	switch l {
	case Info:
		return "{cyan-fg}" + GlyphInfo + " " + msg + "{/cyan-fg}"
	case Success:
		return "{green-fg}" + GlyphSuccess + " " + msg + "{/green-fg}"
	case Warn:
		return "{yellow-fg}" + GlyphWarn + " " + msg + "{/yellow-fg}"
	case Error:
		return "{red-fg}" + GlyphError + " " + msg + "{/red-fg}"
	default:
		return msg
	}
}

// LevelOf guesses the level of an already formatted message from its glyph.
func LevelOf(msg string) Level {
	s := strings.TrimSpace(Strip(msg))
	switch {
	case strings.HasPrefix(s, GlyphError):
		return Error
	case strings.HasPrefix(s, GlyphWarn):
		return Warn
	case strings.HasPrefix(s, GlyphSuccess):
		return Success
	case strings.HasPrefix(s, GlyphInfo):
		return Info
	}
	return Plain
}

// Tee fans one log line out to several sinks.
type Tee []ProgressLog

func (t Tee) Log(msg string) {
	for _, l := range t {
		if l != nil {
			l.Log(msg)
		}
	}
}

// Reporter bundles both sinks. A nil sink falls back to the console.
type Reporter struct {
	log   ProgressLog
	panel StatusPanel
}

func NewReporter(log ProgressLog, panel StatusPanel) *Reporter {
	if log == nil || panel == nil {
		c := Stdout()
		if log == nil {
			log = c
		}
		if panel == nil {
			panel = c
		}
	}
	return &Reporter{log: log, panel: panel}
}

// Logf writes to the detailed log only.
func (r *Reporter) Logf(l Level, format string, a ...any) {
	r.log.Log(Format(l, fmt.Sprintf(format, a...)))
}

// Panelf writes to the status panel only.
func (r *Reporter) Panelf(l Level, format string, a ...any) {
	r.panel.Update(Format(l, fmt.Sprintf(format, a...)))
}

// Bothf writes the same line to both sinks.
func (r *Reporter) Bothf(l Level, format string, a ...any) {
	msg := Format(l, fmt.Sprintf(format, a...))
	r.log.Log(msg)
	r.panel.Update(msg)
}

func (r *Reporter) Log() ProgressLog   { return r.log }
func (r *Reporter) Panel() StatusPanel { return r.panel }
