//go:build gui

package gui

import (
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"stickies/log"
	"stickies/window"
)

const defaultDevice = "System default"

// noteWindow is the fyne view of one note. All fields are touched on the
// UI goroutine only.
type noteWindow struct {
	app   *App
	title string
	w     fyne.Window

	entry     *widget.Entry
	dictate   *widget.Button
	pin       *widget.Button
	devices   *widget.Select
	status    *widget.Label
	indicator *Indicator

	native *nativeWindow
	grip   *grip

	logic   *window.Window
	release func()
	quiet   bool // suppresses OnChanged while the view writes the entry
	shown   bool
}

// newWindow makes a borderless window where the driver allows it; the
// note's grip moves it and its close button closes it.
func newWindow(a fyne.App, title string) (w fyne.Window, borderless bool) {
	if drv, ok := a.Driver().(desktop.Driver); ok {
		w = drv.CreateSplashWindow()
		w.SetTitle(title)
		return w, true
	}
	return a.NewWindow(title), false
}

func newNoteWindow(a *App, title string) (*noteWindow, error) {
	w, borderless := newWindow(a.fyneApp, title)
	nw := &noteWindow{app: a, title: title, w: w, native: newNativeWindow(w)}
	nw.grip = newGrip(title, nw.native, func() float32 { return nw.w.Canvas().Scale() })

	nw.entry = widget.NewMultiLineEntry()
	nw.entry.Wrapping = fyne.TextWrapWord
	nw.entry.OnChanged = func(text string) {
		if nw.quiet {
			return
		}
		a.setActive(nw)
		nw.logic.Edited(text)
	}

	nw.dictate = widget.NewButtonWithIcon(window.LabelStart, theme.MediaRecordIcon(), func() {
		a.setActive(nw)
		nw.logic.ToggleDictation()
	})
	nw.pin = widget.NewButton("Unpin", func() { nw.logic.TogglePin() })
	nw.devices = widget.NewSelect(nil, func(choice string) {
		if nw.quiet {
			return
		}
		if choice == defaultDevice {
			choice = ""
		}
		nw.logic.SelectDevice(choice)
	})
	nw.devices.PlaceHolder = defaultDevice
	nw.status = widget.NewLabel("")
	nw.status.Truncation = fyne.TextTruncateEllipsis
	nw.indicator = NewIndicator()

	logic, release, err := a.opts.Bind(title, nw, window.PosterFunc(fyne.Do))
	if err != nil {
		nw.indicator.Stop()
		nw.w.Close()
		return nil, err
	}
	nw.logic, nw.release = logic, release
	nw.refreshDevices()

	save := widget.NewButtonWithIcon("", theme.DocumentSaveIcon(), nw.save)
	saveAs := widget.NewButtonWithIcon("", theme.DocumentSaveIcon(), nw.saveAs)
	saveAs.SetText("As…")
	cp := widget.NewButtonWithIcon("", theme.ContentCopyIcon(), func() { nw.logic.Copy() })

	bar := container.NewBorder(nil, nil, nw.indicator, nil, nw.grip)
	if borderless {
		closeBtn := widget.NewButtonWithIcon("", theme.WindowCloseIcon(), nw.confirmClose)
		closeBtn.Importance = widget.LowImportance
		bar = container.NewBorder(nil, nil, nw.indicator, closeBtn, nw.grip)
	}
	top := container.NewVBox(bar, container.NewHBox(nw.dictate, layout.NewSpacer(), nw.pin))
	bottom := container.NewVBox(
		container.NewBorder(nil, nil, widget.NewLabel("Mic"), nil, nw.devices),
		container.NewBorder(nil, nil, nil, container.NewHBox(save, saveAs, cp), nw.status),
	)
	nw.w.SetContent(container.NewBorder(top, bottom, nil, nil, nw.entry))
	nw.w.Resize(fyne.NewSize(300, 320))

	ctrl := fyne.KeyModifierShortcutDefault
	nw.w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: ctrl}, func(fyne.Shortcut) { nw.save() })
	nw.w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyD, Modifier: ctrl}, func(fyne.Shortcut) {
		a.setActive(nw)
		nw.logic.ToggleDictation()
	})
	nw.w.SetCloseIntercept(nw.confirmClose)
	return nw, nil
}

func (nw *noteWindow) show() {
	nw.w.Show()
	// pinning needs the native window, which exists once shown
	nw.shown = true
	nw.native.setFloating(nw.logic.Pinned())
}

func (nw *noteWindow) save() {
	if err := nw.logic.Save(); err != nil {
		dialog.ShowError(err, nw.w)
	}
}

func (nw *noteWindow) saveAs() {
	d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, nw.w)
			return
		}
		if wc == nil {
			return
		}
		path := wc.URI().Path()
		wc.Close()
		if err := nw.logic.SaveAs(path); err != nil {
			dialog.ShowError(err, nw.w)
		}
	}, nw.w)
	path := nw.logic.Document().Path()
	d.SetFileName(filepath.Base(path))
	if dir, err := storage.ListerForURI(storage.NewFileURI(filepath.Dir(path))); err == nil {
		d.SetLocation(dir)
	}
	d.Show()
}

func (nw *noteWindow) refreshDevices() {
	names, err := nw.logic.DeviceNames()
	if err != nil {
		log.Warnf("list devices: %v", err)
		nw.status.SetText("Could not list microphones")
		return
	}
	nw.quiet = true
	defer func() { nw.quiet = false }()
	nw.devices.Options = append([]string{defaultDevice}, names...)
	selected := nw.logic.DeviceName()
	if selected == "" {
		selected = defaultDevice
	}
	nw.devices.SetSelected(selected)
	nw.devices.Refresh()
}

func (nw *noteWindow) confirmClose() {
	if !nw.logic.Document().Dirty() {
		nw.close()
		return
	}
	dialog.ShowConfirm("Unsaved changes", "Save "+nw.logic.Title()+" before closing?", func(ok bool) {
		if ok && nw.logic.Save() != nil {
			return
		}
		nw.close()
	}, nw.w)
}

func (nw *noteWindow) close() {
	nw.indicator.Stop()
	nw.app.forget(nw)
	nw.w.Close()
	go nw.cleanup()
}

func (nw *noteWindow) cleanup() {
	if nw.release != nil {
		nw.release()
	}
}

func (nw *noteWindow) SetTitle(title string) {
	nw.w.SetTitle(title)
	if nw.grip != nil {
		nw.grip.SetTitle(title)
	}
}

func (nw *noteWindow) SetText(text string) {
	nw.quiet = true
	nw.entry.SetText(text)
	nw.quiet = false
}

func (nw *noteWindow) AppendText(text string) {
	nw.quiet = true
	nw.entry.SetText(nw.entry.Text + text)
	nw.quiet = false
	nw.entry.CursorRow = strings.Count(nw.entry.Text, "\n")
	nw.entry.Refresh()
}

func (nw *noteWindow) SetDictationLabel(label string) {
	nw.dictate.SetText(label)
	switch label {
	case window.LabelStop:
		nw.dictate.Importance = widget.DangerImportance
		nw.dictate.SetIcon(theme.MediaStopIcon())
		nw.indicator.SetState(indicatorListening)
	case window.LabelStopping:
		nw.dictate.Importance = widget.WarningImportance
		nw.indicator.SetState(indicatorStopping)
	default:
		nw.dictate.Importance = widget.MediumImportance
		nw.dictate.SetIcon(theme.MediaRecordIcon())
		nw.indicator.SetState(indicatorIdle)
	}
	nw.dictate.Refresh()
}

func (nw *noteWindow) SetStatus(status string) { nw.status.SetText(status) }

func (nw *noteWindow) SetPinned(pinned bool) {
	if pinned {
		nw.pin.SetText("Unpin")
	} else {
		nw.pin.SetText("Pin")
	}
	if nw.shown {
		nw.native.setFloating(pinned)
	}
}

func (nw *noteWindow) Notify(title, message string) {
	nw.app.fyneApp.SendNotification(fyne.NewNotification(title, message))
	nw.status.SetText(title)
}
