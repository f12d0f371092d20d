//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// stickyTheme paints every note window like a paper sticky note.
type stickyTheme struct{}

func (s *stickyTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{255, 247, 165, 255}
	case theme.ColorNameInputBackground:
		return color.RGBA{255, 242, 140, 255}
	case theme.ColorNameButton:
		return color.RGBA{245, 228, 120, 255}
	case theme.ColorNameForeground:
		return color.RGBA{40, 36, 20, 255}
	case theme.ColorNamePlaceHolder:
		return color.RGBA{140, 128, 80, 255}
	case theme.ColorNameSeparator:
		return color.RGBA{230, 210, 110, 255}
	}
	return theme.DefaultTheme().Color(name, theme.VariantLight)
}

func (s *stickyTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (s *stickyTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (s *stickyTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameText {
		return 15
	}
	return theme.DefaultTheme().Size(name)
}
