package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/progress"
	"github.com/ligun0805/somnia-runner/internal/scripts"
)

var errInputCanceled = errors.New("input canceled")

var (
	runMu     sync.Mutex
	runCancel context.CancelFunc
)

// startRun launches one script in the background. Only one run is active at a time.
func startRun(a fyne.App, script string, st config.Settings) {
	runMu.Lock()
	if runCancel != nil {
		runMu.Unlock()
		dialog.ShowInformation("Busy", "A run is already in progress", mainWin)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	runCancel = cancel
	runMu.Unlock()

	setRunning(true)
	ensureLogWindow(a).Show()
	appendLogLine(a, fmt.Sprintf("=== %s ===", script))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				appendLogLine(a, fmt.Sprintf("[panic] %v", r))
			}
		}()
		env := scripts.Env{
			Settings: st,
			Log:      guiLog{a},
			Panel:    guiPanel{},
			Input:    dialogInput{},
			Close:    func() { finishRun(cancel) },
		}
		if err := scripts.Runs[script](ctx, env); err != nil {
			appendLogLine(a, "run ended: "+err.Error())
		}
	}()
}

func stopRun() {
	runMu.Lock()
	cancel := runCancel
	runMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func finishRun(cancel context.CancelFunc) {
	cancel()
	runMu.Lock()
	runCancel = nil
	runMu.Unlock()
	setRunning(false)
}

func setRunning(on bool) {
	for _, b := range scriptBtns {
		if on {
			b.Disable()
		} else {
			b.Enable()
		}
	}
	if stopBtn != nil {
		if on {
			stopBtn.Enable()
		} else {
			stopBtn.Disable()
		}
	}
}

// dialogInput asks through a modal form with the default prefilled.
// Request blocks until the dialog is answered or ctx ends.
type dialogInput struct{}

func (dialogInput) Request(ctx context.Context, prompt string, kind progress.InputKind, def string) (string, error) {
	entry := widget.NewEntry()
	entry.SetText(def)
	if kind == progress.KindNumber {
		entry.SetPlaceHolder("number")
	}

	type answer struct {
		s  string
		ok bool
	}
	ch := make(chan answer, 1)
	d := dialog.NewForm("Input", "OK", "Cancel",
		[]*widget.FormItem{widget.NewFormItem(prompt, entry)},
		func(ok bool) { ch <- answer{entry.Text, ok} },
		mainWin)
	d.Resize(fyne.NewSize(480, 180))
	d.Show()

	select {
	case <-ctx.Done():
		d.Hide()
		return "", ctx.Err()
	case a := <-ch:
		if !a.ok {
			return "", errInputCanceled
		}
		if s := strings.TrimSpace(a.s); s != "" {
			return s, nil
		}
		return def, nil
	}
}
