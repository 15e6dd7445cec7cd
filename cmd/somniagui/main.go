package main

import (
	"image/color"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/ligun0805/somnia-runner/internal/config"
	"github.com/ligun0805/somnia-runner/internal/scripts"
)

// window-level state shared by ui_log.go and ui_run.go
var (
	mainWin     fyne.Window
	statusLbl   *widget.Label
	scriptBtns  []*widget.Button
	stopBtn     *widget.Button
	settingsErr error
)

func main() {
	hideConsoleWindow()

	envFile := ".env"
	if len(os.Args) > 1 {
		envFile = os.Args[1]
	}
	st, err := config.Load(envFile)
	if err != nil {
		settingsErr = err
		st = config.Default()
	}

	a := app.New()
	curTheme := makeTheme("dark", false)
	a.Settings().SetTheme(curTheme)

	mainWin = a.NewWindow("Somnia Runner")
	mainWin.SetOnClosed(func() {
		stopRun()
		if logWin != nil {
			logWin.Close()
			logWin = nil
		}
	})
	mainWin.Resize(fyne.NewSize(720, 460))

	rpcEntry := widget.NewEntry()
	rpcEntry.SetText(st.RPCURL)
	keysEntry := widget.NewEntry()
	keysEntry.SetText(st.KeyFile)
	shuffleCheck := widget.NewCheck("Shuffle wallets", nil)
	shuffleCheck.SetChecked(st.ShuffleWallets)

	themeSelect := widget.NewSelect([]string{"Dark", "Light"}, func(s string) {
		mode := "dark"
		if s == "Light" {
			mode = "light"
		}
		curTheme = makeTheme(mode, curTheme.(*appTheme).compact)
		a.Settings().SetTheme(curTheme)
	})
	themeSelect.SetSelected("Dark")
	compactCheck := widget.NewCheck("Compact", func(b bool) {
		curTheme = makeTheme(curTheme.(*appTheme).mode, b)
		a.Settings().SetTheme(curTheme)
	})

	settingsCard := widget.NewCard("Settings", "", widget.NewForm(
		widget.NewFormItem("RPC URL", rpcEntry),
		widget.NewFormItem("Key file", keysEntry),
		widget.NewFormItem("", container.NewGridWithColumns(3, shuffleCheck, themeSelect, compactCheck)),
	))

	// current form values over the loaded settings
	settings := func() config.Settings {
		cur := st
		cur.RPCURL = rpcEntry.Text
		cur.KeyFile = keysEntry.Text
		cur.ShuffleWallets = shuffleCheck.Checked
		return cur
	}

	buttons := []struct {
		label  string
		script string
		icon   fyne.Resource
	}{
		{"SWAP $PONG -> $PING", scripts.Swapping, theme.MediaReplayIcon()},
		{"MINT $PING", scripts.MintPing, theme.ContentAddIcon()},
		{"MINT sUSDT", scripts.MintSUSDT, theme.ContentAddIcon()},
		{"NFT COLLECTION", scripts.NFTCollection, theme.GridIcon()},
	}
	grid := container.NewGridWithColumns(2)
	for _, b := range buttons {
		script := b.script
		btn := widget.NewButtonWithIcon(b.label, b.icon, func() { startRun(a, script, settings()) })
		scriptBtns = append(scriptBtns, btn)
		grid.Add(btn)
	}

	stopBtn = widget.NewButtonWithIcon("STOP", theme.MediaStopIcon(), stopRun)
	stopBtn.Disable()
	logsBtn := widget.NewButtonWithIcon("LOGS", theme.ListIcon(), func() { ensureLogWindow(a).Show() })

	statusLbl = widget.NewLabel("Idle")
	statusLbl.Wrapping = fyne.TextWrapWord
	statusCard := widget.NewCard("Status", "", statusLbl)

	top := container.NewVBox(settingsCard, grid, container.NewGridWithColumns(2, stopBtn, logsBtn))
	bg := canvas.NewLinearGradient(color.NRGBA{12, 16, 24, 255}, color.NRGBA{20, 28, 40, 255}, 90)
	mainWin.SetContent(container.NewStack(bg, container.NewBorder(top, nil, nil, nil, statusCard)))

	if settingsErr != nil {
		dialog.ShowError(settingsErr, mainWin)
	}
	mainWin.ShowAndRun()
}
