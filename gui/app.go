//go:build gui

package gui

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"stickies/log"
	"stickies/window"
)

// Binder loads the note called title and binds its window logic to view.
// The returned cleanup stops dictation and releases the note.
type Binder func(title string, view window.View, poster window.Poster) (*window.Window, func(), error)

type Options struct {
	// Titles lists the notes on disk for the launcher.
	Titles func() ([]string, error)
	Bind   Binder
	// Open lists the notes shown at startup. With none, the launcher is shown.
	Open []string
}

type App struct {
	opts     Options
	fyneApp  fyne.App
	launcher fyne.Window
	list     *widget.List
	titles   []string
	hasTray  bool
	// launcherShown is only touched on the UI goroutine
	launcherShown bool

	mu     sync.Mutex
	notes  map[string]*noteWindow
	active *noteWindow
	quit   sync.Once
}

func NewApp(opts Options) *App {
	return &App{opts: opts, notes: make(map[string]*noteWindow)}
}

// Run owns the calling goroutine until the app quits. It must be called on
// the main thread.
func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.stickies.notes")
	a.fyneApp.Settings().SetTheme(&stickyTheme{})
	icon := fyne.NewStaticResource("stickies.png", noteIcon(64))
	a.fyneApp.SetIcon(icon)

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("stickies",
			fyne.NewMenuItem("New note", a.promptNew),
			fyne.NewMenuItem("All notes", a.showLauncher),
			fyne.NewMenuItemSeparator(),
			fyne.NewMenuItem("Quit", a.Quit),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(fyne.NewStaticResource("tray.png", noteIcon(22)))
		a.hasTray = true
	}

	a.buildLauncher()
	for _, title := range a.opts.Open {
		a.openNote(title)
	}
	if len(a.opts.Open) == 0 {
		a.showLauncher()
	}

	a.fyneApp.Run()
	a.closeAll()
	return nil
}

func (a *App) buildLauncher() {
	a.launcher = a.fyneApp.NewWindow("Stickies")
	a.list = widget.NewList(
		func() int { return len(a.titles) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(a.titles[id])
		},
	)
	a.list.OnSelected = func(id widget.ListItemID) {
		a.list.UnselectAll()
		if id < len(a.titles) {
			a.openNote(a.titles[id])
		}
	}

	toolbar := container.NewHBox(
		widget.NewButtonWithIcon("New note", theme.ContentAddIcon(), a.promptNew),
		widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), a.refreshTitles),
	)
	a.launcher.SetContent(container.NewBorder(toolbar, nil, nil, nil, a.list))
	a.launcher.Resize(fyne.NewSize(280, 360))
	a.launcher.SetCloseIntercept(func() {
		if a.hasTray {
			a.launcher.Hide()
			a.launcherShown = false
			return
		}
		a.Quit()
	})
}

func (a *App) refreshTitles() {
	titles, err := a.opts.Titles()
	if err != nil {
		log.Warnf("list notes: %v", err)
		dialog.ShowError(err, a.launcher)
		return
	}
	a.titles = titles
	a.list.Refresh()
}

func (a *App) showLauncher() {
	a.refreshTitles()
	a.launcher.Show()
	a.launcher.RequestFocus()
	a.launcherShown = true
}

func (a *App) promptNew() {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("Groceries")
	a.showLauncher()
	dialog.ShowForm("New note", "Create", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Title", entry)},
		func(ok bool) {
			title := strings.TrimSpace(entry.Text)
			if !ok || title == "" {
				return
			}
			a.openNote(title)
			a.refreshTitles()
		}, a.launcher)
}

// openNote shows the note's window, creating it on first use. One window
// per note.
func (a *App) openNote(title string) {
	a.mu.Lock()
	existing := a.notes[title]
	a.mu.Unlock()
	if existing != nil {
		existing.w.Show()
		existing.w.RequestFocus()
		a.setActive(existing)
		return
	}

	nw, err := newNoteWindow(a, title)
	if err != nil {
		log.Errorf("open note %q: %v", title, err)
		dialog.ShowError(fmt.Errorf("open %q: %w", title, err), a.launcher)
		return
	}
	a.mu.Lock()
	a.notes[title] = nw
	a.mu.Unlock()
	a.setActive(nw)
	nw.show()
}

func (a *App) forget(nw *noteWindow) {
	a.mu.Lock()
	if a.notes[nw.title] == nw {
		delete(a.notes, nw.title)
	}
	if a.active == nw {
		a.active = nil
	}
	remaining := len(a.notes)
	a.mu.Unlock()

	if remaining == 0 && !a.hasTray && !a.launcherShown {
		a.Quit()
	}
}

func (a *App) setActive(nw *noteWindow) {
	a.mu.Lock()
	a.active = nw
	a.mu.Unlock()
}

func (a *App) activeNote() *noteWindow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// StartActive starts dictation in the most recently used note. Safe to
// call from any goroutine.
func (a *App) StartActive() {
	fyne.Do(func() {
		if nw := a.activeNote(); nw != nil && !nw.logic.Listening() {
			nw.logic.ToggleDictation()
		}
	})
}

func (a *App) StopActive() {
	fyne.Do(func() {
		if nw := a.activeNote(); nw != nil && nw.logic.Listening() {
			nw.logic.ToggleDictation()
		}
	})
}

// DevicesChanged refreshes the microphone pickers after a hotplug.
func (a *App) DevicesChanged() {
	fyne.Do(func() {
		a.mu.Lock()
		notes := make([]*noteWindow, 0, len(a.notes))
		for _, nw := range a.notes {
			notes = append(notes, nw)
		}
		a.mu.Unlock()
		for _, nw := range notes {
			nw.refreshDevices()
		}
	})
}

func (a *App) Quit() {
	a.quit.Do(func() {
		if a.fyneApp != nil {
			fyne.Do(a.fyneApp.Quit)
		}
	})
}

func (a *App) closeAll() {
	a.mu.Lock()
	notes := make([]*noteWindow, 0, len(a.notes))
	for _, nw := range a.notes {
		notes = append(notes, nw)
	}
	a.notes = map[string]*noteWindow{}
	a.mu.Unlock()
	for _, nw := range notes {
		nw.cleanup()
	}
}
