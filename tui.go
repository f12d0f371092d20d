package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stickies/audio"
	"stickies/hotkey"
	"stickies/log"
	"stickies/note"
	"stickies/window"
)

// postMsg carries a function posted by the window logic; Update runs it on
// the program goroutine.
type postMsg func()

type tuiView struct {
	title  string
	text   string
	label  string
	status string
	notice string
	pinned bool
	device string
}

func (v *tuiView) SetTitle(title string)          { v.title = title }
func (v *tuiView) SetText(text string)            { v.text = text }
func (v *tuiView) AppendText(text string)         { v.text += text }
func (v *tuiView) SetDictationLabel(label string) { v.label = label }
func (v *tuiView) SetStatus(status string)        { v.status = status }
func (v *tuiView) SetPinned(pinned bool)          { v.pinned = pinned }

func (v *tuiView) Notify(title, message string) {
	v.notice = title + ": " + message
}

// tuiNote is shared by every copy of the model.
type tuiNote struct {
	view  *tuiView
	win   *window.Window
	combo string
}

type tuiModel struct {
	note          *tuiNote
	width, height int
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("228")).
			Bold(true).
			Padding(0, 1)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230"))
	listenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	v, win := m.note.view, m.note.win
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case postMsg:
		msg()

	case tea.KeyMsg:
		v.notice = ""
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+d":
			win.ToggleDictation()
		case "ctrl+s":
			win.Save()
		case "ctrl+t":
			win.TogglePin()
		case "ctrl+y":
			win.Copy()
		case "ctrl+g":
			nextDevice(v, win)
		case "enter":
			m.edit(v.text + "\n")
		case "backspace":
			if r := []rune(v.text); len(r) > 0 {
				m.edit(string(r[:len(r)-1]))
			}
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				m.edit(v.text + string(msg.Runes))
			}
		}
	}
	return m, nil
}

func (m tuiModel) edit(text string) {
	m.note.view.text = text
	m.note.win.Edited(text)
}

// nextDevice cycles the input through a fresh enumeration, system default
// first.
func nextDevice(v *tuiView, win *window.Window) {
	names, err := win.DeviceNames()
	if err != nil {
		v.status = "Could not list microphones"
		log.Warnf("list devices: %v", err)
		return
	}
	options := append([]string{""}, names...)
	next := 0
	for i, name := range options {
		if name == win.DeviceName() {
			next = (i + 1) % len(options)
			break
		}
	}
	win.SelectDevice(options[next])
	v.device = options[next]
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	v := m.note.view

	header := v.title
	if v.pinned {
		header += " 📌"
	}

	var label string
	if v.label == window.LabelStart {
		label = idleStyle.Render("○ " + v.label)
	} else {
		label = listenStyle.Render("● " + v.label)
	}
	device := v.device
	if device == "" {
		device = "system default"
	} else if audio.IsBluetooth(device) {
		device += " (BT!)"
	}

	footer := []string{
		label + statusStyle.Render("  mic: "+device),
	}
	if v.status != "" {
		footer = append(footer, statusStyle.Render(v.status))
	}
	if v.notice != "" {
		footer = append(footer, noticeStyle.Render(v.notice))
	}
	footer = append(footer, helpKeyStyle.Render("ctrl+d")+helpStyle.Render(" dictate  ")+
		helpKeyStyle.Render("ctrl+s")+helpStyle.Render(" save  ")+
		helpKeyStyle.Render("ctrl+g")+helpStyle.Render(" mic  ")+
		helpKeyStyle.Render("ctrl+y")+helpStyle.Render(" copy  ")+
		helpKeyStyle.Render("ctrl+t")+helpStyle.Render(" pin"))
	if m.note.combo != "" {
		footer[len(footer)-1] += helpStyle.Render("  ") + helpKeyStyle.Render(m.note.combo) + helpStyle.Render(" anywhere")
	}

	// keep the end of the note in view; dictation appends there
	bodyHeight := max(m.height-len(footer)-2, 1)
	var lines []string
	for _, para := range strings.Split(v.text+"▏", "\n") {
		lines = append(lines, wrapText(para, max(m.width-2, 10))...)
	}
	if len(lines) > bodyHeight {
		lines = lines[len(lines)-bodyHeight:]
	}

	body := lipgloss.NewStyle().
		Width(m.width).
		Height(bodyHeight).
		PaddingLeft(1).
		Render(textStyle.Render(strings.Join(lines, "\n")))

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Width(m.width).Render(header),
		body,
		"",
		strings.Join(footer, "\n"),
	)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// newTUIProgram binds doc to a terminal view. Window callbacks reach the
// program through a queue, so they never wait on Update.
func newTUIProgram(ctx context.Context, a *app, doc *note.Document, opts ...tea.ProgramOption) (*tea.Program, *tuiNote, window.Poster, func()) {
	n := &tuiNote{view: &tuiView{}}
	p := tea.NewProgram(tuiModel{note: n}, append(opts, tea.WithContext(ctx))...)
	poster := window.NewQueue(ctx, func(fn func()) { p.Send(postMsg(fn)) })

	win, cleanup := a.bind(ctx, doc, n.view, poster)
	n.win = win
	n.view.device = win.DeviceName()
	return p, n, poster, cleanup
}

// runTUI edits one note in the terminal until the user quits or ctx ends.
func runTUI(ctx context.Context, a *app, title string) error {
	doc, err := a.open(title)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p, n, poster, cleanup := newTUIProgram(ctx, a, doc, tea.WithAltScreen())
	win := n.win

	if a.cfg.Hotkey {
		n.combo = a.combo.String()
		hk := hotkey.New(a.combo)
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey register error: %v", err)
			n.view.status = a.combo.String() + " unavailable: " + err.Error()
		} else {
			defer hk.Unregister()
			go hotkey.Watch(ctx, hk, hotkey.DefaultHold, hotkey.Bindings{
				Start: func() { poster.Post(func() { startDictation(win) }) },
				Stop:  func() { poster.Post(func() { stopDictation(win) }) },
			})
		}
	}

	go watchDevices(ctx, a.registry, func(names []string) {
		poster.Post(func() {
			if name := win.DeviceName(); name != "" && !slices.Contains(names, name) {
				n.view.status = name + " disconnected, using system default"
				return
			}
			n.view.status = fmt.Sprintf("%d microphone(s) available (ctrl+g)", len(names))
		})
	})

	_, err = p.Run()
	cleanup()
	if doc.Dirty() {
		log.Infof("%s closed with unsaved changes", doc.Title())
		fmt.Printf("%s has unsaved changes (not written to %s)\n", doc.Title(), doc.Path())
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
