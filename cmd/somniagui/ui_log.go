package main

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/progress"
)

var (
	logMu     sync.Mutex
	logWin    fyne.Window
	logBox    *widget.Entry
	logScroll *container.Scroll
	logLines  []string
)

// ensureLogWindow creates or returns the log window.
func ensureLogWindow(a fyne.App) fyne.Window {
	if logWin != nil {
		return logWin
	}
	logWin = a.NewWindow("Logs")
	logWin.SetOnClosed(func() { logWin = nil; logBox = nil; logScroll = nil })
	saveBtn := widget.NewButtonWithIcon("Save Log", theme.DocumentSaveIcon(), func() { saveLog(logWin) })
	clearBtn := widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), func() {
		logMu.Lock()
		logLines = nil
		logMu.Unlock()
		logBox.SetText("")
	})
	top := container.NewBorder(nil, nil, nil, container.NewHBox(clearBtn, saveBtn), widget.NewLabel("Transaction log"))
	bg := canvas.NewLinearGradient(color.NRGBA{12, 16, 24, 255}, color.NRGBA{20, 28, 40, 255}, 90)
	logBox = widget.NewMultiLineEntry()
	logBox.Disable()
	logBox.Wrapping = fyne.TextWrapWord
	logMu.Lock()
	logBox.SetText(joinLines(logLines))
	logMu.Unlock()
	logScroll = container.NewVScroll(logBox)
	logScroll.SetMinSize(fyne.NewSize(800, 180))
	logWin.SetContent(container.NewBorder(top, nil, nil, nil, container.NewStack(bg, logScroll)))
	logWin.Resize(fyne.NewSize(1000, 700))
	return logWin
}

// appendLogLine adds a timestamped line to the log.
func appendLogLine(a fyne.App, s string) {
	w := ensureLogWindow(a)
	line := time.Now().Format("15:04:05 ") + s
	logMu.Lock()
	logLines = append(logLines, line)
	logMu.Unlock()

	logBox.SetText(logBox.Text + line + "\n")
	if logScroll != nil {
		logScroll.ScrollToBottom()
	}
	w.Canvas().Refresh(logBox)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// saveLog writes the collected lines to log_data/<timestamp>.log next to the executable.
func saveLog(w fyne.Window) {
	ts := time.Now().Format("20060102_150405")
	exe, _ := os.Executable()
	dir := filepath.Join(filepath.Dir(exe), "log_data")
	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, ts+".log")
	logMu.Lock()
	text := joinLines(logLines)
	logMu.Unlock()
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		dialog.ShowError(errors.Wrap(err, "save log"), w)
		return
	}
	dialog.ShowInformation("Saved", "Log saved to:\n"+path, w)
}

// guiLog is the ProgressLog of the log window. Markup is stripped.
type guiLog struct{ a fyne.App }

func (g guiLog) Log(msg string) { appendLogLine(g.a, progress.Strip(msg)) }

// guiPanel shows the latest status line.
type guiPanel struct{}

func (guiPanel) Update(msg string) {
	if statusLbl != nil {
		statusLbl.SetText(progress.Strip(msg))
	}
}
