package main

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

type appTheme struct {
	mode    string
	compact bool
}

func makeTheme(mode string, compact bool) fyne.Theme { return &appTheme{mode: mode, compact: compact} }

var (
	accent      = color.NRGBA{R: 124, G: 77, B: 255, A: 255}
	successTint = color.NRGBA{R: 46, G: 204, B: 113, A: 255}
)

func (t *appTheme) base() fyne.Theme {
	if t.mode == "light" {
		return theme.LightTheme()
	}
	return theme.DarkTheme()
}

func (t *appTheme) Color(n fyne.ThemeColorName, v fyne.ThemeVariant) color.Color {
	dark := t.mode == "dark"
	switch n {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return accent
	case theme.ColorNameSuccess:
		return successTint
	case theme.ColorNameForeground:
		if dark {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{A: 255}
	case theme.ColorNamePlaceHolder, theme.ColorNameDisabled:
		// the log box is a disabled entry and must stay readable
		if dark {
			return color.NRGBA{R: 210, G: 210, B: 210, A: 255}
		}
		return color.NRGBA{R: 70, G: 70, B: 70, A: 255}
	}
	return t.base().Color(n, v)
}

func (t *appTheme) Font(style fyne.TextStyle) fyne.Resource { return t.base().Font(style) }
func (t *appTheme) Icon(n fyne.ThemeIconName) fyne.Resource  { return t.base().Icon(n) }

func (t *appTheme) Size(n fyne.ThemeSizeName) float32 {
	size := t.base().Size(n)
	if !t.compact {
		return size
	}
	switch n {
	case theme.SizeNameText:
		return size * 0.92
	case theme.SizeNamePadding, theme.SizeNameInnerPadding:
		return size * 0.8
	}
	return size
}
