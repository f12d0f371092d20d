//go:build gui

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"stickies/gui"
	"stickies/hotkey"
	"stickies/log"
	"stickies/shutdown"
	"stickies/window"
)

// initGUI runs the desktop front end. The audio context is created on the
// main thread before fyne takes it over, which Core Audio requires.
func initGUI() {
	runtime.LockOSThread()

	a, _ := setup()
	ctx, stop := shutdown.Context(context.Background())

	var open []string
	if args := flag.Args(); len(args) > 0 {
		open = []string{strings.Join(args, " ")}
	}

	guiApp := gui.NewApp(gui.Options{
		Titles: a.dir.List,
		Bind: func(title string, view window.View, poster window.Poster) (*window.Window, func(), error) {
			doc, err := a.open(title)
			if err != nil {
				return nil, nil, err
			}
			win, cleanup := a.bind(ctx, doc, view, poster)
			return win, cleanup, nil
		},
		Open: open,
	})

	go func() {
		<-ctx.Done()
		guiApp.Quit()
	}()

	if a.cfg.Hotkey {
		hk := hotkey.New(a.combo)
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey register error: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %s unavailable: %v\n", a.combo, err)
		} else {
			defer hk.Unregister()
			go hotkey.Watch(ctx, hk, hotkey.DefaultHold, hotkey.Bindings{
				Start: guiApp.StartActive,
				Stop:  guiApp.StopActive,
			})
		}
	}

	go watchDevices(ctx, a.registry, func([]string) { guiApp.DevicesChanged() })

	err := gui.Run(guiApp)
	stop()
	a.close()
	if err != nil {
		log.Errorf("gui: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
