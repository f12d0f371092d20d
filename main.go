package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"stickies/audio"
	"stickies/clipboard"
	"stickies/config"
	"stickies/cue"
	"stickies/dictation"
	"stickies/doctor"
	"stickies/encoder"
	"stickies/hotkey"
	"stickies/journal"
	"stickies/log"
	"stickies/note"
	"stickies/shutdown"
	"stickies/transcriber"
	"stickies/window"
)

var version = "dev"

type flags struct {
	logPath  string
	config   string
	device   string
	gui      bool
	setup    bool
	list     bool
	doctor   bool
	test     string
	history  string
	provider string
	version  bool
	crash    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&f.config, "config", "", "config file (default: $STICKIES_CONFIG or the user config dir)")
	flag.StringVar(&f.device, "device", "", "Use named microphone device")
	flag.BoolVar(&f.gui, "gui", false, "Open notes as desktop windows (requires a build with -tags gui)")
	flag.BoolVar(&f.setup, "setup", false, "Select microphone device before opening the note")
	flag.BoolVar(&f.list, "list", false, "List notes and input devices, then exit")
	flag.BoolVar(&f.doctor, "doctor", false, "Run system diagnostics and exit")
	flag.StringVar(&f.test, "test", "", "Headless mode: dictate from a WAV file, driven by commands on stdin")
	flag.StringVar(&f.history, "history", "", "Print the dictation journal of a note and exit")
	flag.StringVar(&f.provider, "provider", "", "Recognition provider: groq, openai, deepgram or exec")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.BoolVar(&f.crash, "crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()
	return f
}

// app is the process-wide dictation stack shared by every open note.
type app struct {
	cfg      config.Config
	dir      note.Dir
	audioCtx audio.Context
	registry *audio.Registry
	mic      audio.Microphone
	rec      transcriber.Recognizer
	journal  *journal.Journal
	cues     *cue.Player
	combo    hotkey.Combo
	claims   *window.Claims
}

func initLog(f flags) {
	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), log.CrashFile)
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// setup parses flags, loads the config and builds the dictation stack.
// Informational flags exit here.
func setup() (*app, flags) {
	f := parseFlags()
	initLog(f)
	initCrashLog()

	if f.crash {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}
	if f.version {
		fmt.Printf("stickies %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Loader{Path: f.config}.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if f.provider != "" {
		cfg.Provider = strings.ToLower(f.provider)
	}
	if f.device != "" {
		cfg.Device = f.device
	}

	if err := log.Init(log.ParseLevel(cfg.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	a := &app{cfg: cfg, dir: note.NewDir(cfg.NotesDir, cfg.Extension), claims: window.NewClaims()}
	if a.combo, err = hotkey.ParseCombo(cfg.HotkeyCombo); err != nil {
		a.combo = hotkey.MustParseCombo(hotkey.DefaultCombo)
	}
	if err := a.dir.Ensure(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if f.history != "" {
		os.Exit(printHistory(cfg, f.history))
	}

	if f.test != "" {
		fake, err := audio.LoadFakeContext(f.test, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			os.Exit(1)
		}
		fake.SetDevices(audio.DeviceInfo{ID: "test", Name: "Test Input"})
		a.audioCtx = fake
	} else {
		a.audioCtx, err = audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
	}
	a.registry = audio.NewRegistry(a.audioCtx)

	if f.list {
		os.Exit(a.list())
	}

	if f.doctor {
		os.Exit(a.doctor())
	}

	if f.setup {
		dev, err := audio.PickDevice(a.registry)
		switch {
		case errors.Is(err, audio.ErrPickCancelled):
			os.Exit(0)
		case err != nil:
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		case dev != nil:
			a.cfg.Device = dev.Name
		default:
			a.cfg.Device = ""
		}
	}

	a.mic = audio.NewMicrophone(a.audioCtx, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}, audio.EndpointConfig{
		Threshold:     cfg.Utterance.Threshold,
		Silence:       cfg.Utterance.Silence,
		MaxUtterance:  cfg.Utterance.Max,
		ListenTimeout: cfg.ListenTimeout,
	})

	a.rec, err = transcriber.New(transcriber.Options{
		Provider:    cfg.Provider,
		Language:    cfg.Language,
		ExecCommand: cfg.Exec.Command,
		ExecModel:   cfg.Exec.Model,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Journal.Enabled {
		path := cfg.Journal.Path
		if path == "" {
			path = journal.DefaultPath()
		}
		a.journal, err = journal.Open(context.Background(), path)
		if err != nil {
			log.Warnf("journal disabled: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: journal disabled: %v\n", err)
		}
	}

	a.cues = cue.New(cfg.Cues && f.test == "")
	log.Infof("stickies %s: provider=%s notes=%s", version, a.rec.Name(), cfg.NotesDir)
	return a, f
}

func (a *app) close() {
	if a.journal != nil {
		a.journal.Close()
	}
	a.audioCtx.Close()
	log.Close()
}

// open loads the note called title, creating an empty one when it does not
// exist yet.
func (a *app) open(title string) (*note.Document, error) {
	path, err := a.dir.PathFor(title)
	if err != nil {
		return nil, err
	}
	return note.Open(path)
}

func (a *app) controller(ctx context.Context, doc *note.Document) *dictation.Controller {
	opts := dictation.Options{RetryDelay: a.cfg.RetryDelay}
	if a.journal != nil {
		opts.Observer = a.journal.ForNote(doc.Title)
	}
	return dictation.New(ctx, a.mic, a.rec, opts)
}

// bind builds the window logic for doc. The returned cleanup cancels the
// controller and the file watcher; Close on the window calls it too.
func (a *app) bind(ctx context.Context, doc *note.Document, view window.View, poster window.Poster) (*window.Window, func()) {
	ctx, cancel := context.WithCancel(ctx)
	ctrl := a.controller(ctx, doc)

	opts := window.Options{Cues: a.cues, OnClose: cancel, Claims: a.claims}
	if clipboard.Available() {
		opts.Clipboard = clipboard.Copy
	}
	win := window.New(doc, ctrl, a.registry, view, poster, opts)
	if a.cfg.Device != "" {
		win.SelectDevice(a.cfg.Device)
	}

	if err := note.Watch(ctx, doc, func() { poster.Post(win.ExternalChange) }); err != nil {
		log.Warnf("watch %s: %v", doc.Path(), err)
	}
	return win, func() {
		win.Close()
		cancel()
		ctrl.Wait()
	}
}

func (a *app) list() int {
	titles, err := a.dir.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Notes in %s:\n", a.dir.Root)
	for _, t := range titles {
		fmt.Printf("  %s\n", t)
	}

	devices, err := a.registry.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("Input devices:")
	for _, d := range devices {
		suffix := ""
		if audio.IsBluetooth(d.Name) {
			suffix = " (bluetooth: lower quality)"
		}
		fmt.Printf("  %d: %s%s\n", d.Index, d.Name, suffix)
	}
	return 0
}

func (a *app) doctor() int {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	return doctor.Run(ctx, os.Stdout, doctor.Checks(doctor.Env{
		Dir:      a.dir,
		Audio:    a.audioCtx,
		Registry: a.registry,
		Device:   a.cfg.Device,
		Recognize: transcriber.Options{
			Provider:    a.cfg.Provider,
			Language:    a.cfg.Language,
			ExecCommand: a.cfg.Exec.Command,
			ExecModel:   a.cfg.Exec.Model,
		},
		Hotkey:    a.cfg.Hotkey,
		Combo:     a.combo,
		Clipboard: true,
	}))
}

func printHistory(cfg config.Config, title string) int {
	path := cfg.Journal.Path
	if path == "" {
		path = journal.DefaultPath()
	}
	j, err := journal.Open(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer j.Close()

	sessions, err := j.Sessions(title)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  %d segment(s)\n", s.StartedAt.Format("2006-01-02 15:04:05"), s.Device, s.Segments)
		segments, err := j.Segments(s.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		for _, seg := range segments {
			fmt.Printf("    %s\n", seg.Text)
		}
		failures, err := j.Failures(s.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		for _, fl := range failures {
			fmt.Printf("    ! %s: %s\n", fl.Kind, fl.Error)
		}
	}
	return 0
}

// title returns the note named on the command line, or "Untitled".
func title() string {
	if args := flag.Args(); len(args) > 0 {
		return strings.Join(args, " ")
	}
	return "Untitled"
}

func run() {
	a, f := setup()

	ctx, stop := shutdown.Context(context.Background())
	code := 0
	if f.test != "" {
		code = runTestMode(ctx, a, title())
	} else if err := runTUI(ctx, a, title()); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 1
	}
	stop()
	a.close()
	os.Exit(code)
}
