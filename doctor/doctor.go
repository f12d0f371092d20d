// Package doctor runs the -doctor system diagnostics.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"stickies/audio"
	"stickies/clipboard"
	"stickies/encoder"
	"stickies/hotkey"
	"stickies/note"
	"stickies/transcriber"
)

// Check is one diagnostic step. Run returns a short detail line on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// Run executes checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "stickies doctor - system diagnostics")
	fmt.Fprintln(w, "====================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.Name)
		if ctx.Err() != nil {
			fmt.Fprintln(w, "  SKIP: interrupted")
			failed++
			continue
		}
		detail, err := c.Run(ctx)
		if err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(w, "  PASS: %s\n", detail)
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

// Env is what the standard checks inspect.
type Env struct {
	Dir       note.Dir
	Audio     audio.Context
	Registry  *audio.Registry
	Device    string
	Recognize transcriber.Options
	Hotkey    bool
	Combo     hotkey.Combo
	Clipboard bool
	Listen    time.Duration
}

// Checks returns the standard check list for env.
func Checks(env Env) []Check {
	checks := []Check{
		{"Notes directory", func(context.Context) (string, error) { return checkNotesDir(env.Dir) }},
		{"Input devices", func(context.Context) (string, error) { return checkDevices(env.Registry, env.Device) }},
		{"Microphone level", func(ctx context.Context) (string, error) {
			return checkMicrophone(ctx, env.Audio, env.Registry, env.Device, env.Listen)
		}},
		{"Speech recognizer", func(context.Context) (string, error) { return checkRecognizer(env.Recognize) }},
	}
	if env.Hotkey {
		checks = append(checks, Check{"Global hotkey", func(context.Context) (string, error) { return hotkey.Diagnose(env.Combo) }})
	}
	if env.Clipboard {
		checks = append(checks, Check{"Clipboard", func(context.Context) (string, error) { return checkClipboard() }})
	}
	return checks
}

func checkNotesDir(dir note.Dir) (string, error) {
	if err := dir.Ensure(); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir.Root, ".doctor-*")
	if err != nil {
		return "", fmt.Errorf("%s is not writable: %w", dir.Root, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	titles, err := dir.List()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s writable, %d note(s)", dir.Root, len(titles)), nil
}

func checkDevices(reg *audio.Registry, name string) (string, error) {
	devices, err := reg.ListDevices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", errors.New("no capture devices found")
	}
	if name == "" {
		return fmt.Sprintf("%d device(s), using system default", len(devices)), nil
	}
	if _, err := reg.ResolveByName(name); err != nil {
		return "", fmt.Errorf("%s not found, dictation will use system default", name)
	}
	return fmt.Sprintf("%d device(s), %s present", len(devices), name), nil
}

// checkMicrophone records for d and reports the loudest frame level.
func checkMicrophone(ctx context.Context, actx audio.Context, reg *audio.Registry, name string, d time.Duration) (string, error) {
	if d <= 0 {
		d = 2 * time.Second
	}
	var device *audio.DeviceInfo
	if name != "" {
		device, _ = reg.ResolveByName(name)
	}

	capture, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return "", fmt.Errorf("cannot open microphone: %w", err)
	}
	defer capture.Close()

	var (
		mu    sync.Mutex
		bytes int
		peak  float64
	)
	capture.SetCallback(func(data []byte, _ uint32) {
		level := audio.FrameRMS(data)
		mu.Lock()
		bytes += len(data)
		peak = max(peak, level)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return "", fmt.Errorf("cannot start capture: %w", err)
	}

	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	if bytes == 0 {
		return "", errors.New("no audio captured")
	}
	secs := float64(bytes) / float64(encoder.SampleRate*encoder.Channels*2)
	if peak < 0.001 {
		return "", fmt.Errorf("captured %.1fs of silence; check the input is not muted", secs)
	}
	return fmt.Sprintf("captured %.1fs, peak level %.3f", secs, peak), nil
}

func checkRecognizer(opts transcriber.Options) (string, error) {
	rec, err := transcriber.New(opts)
	if err != nil {
		return "", err
	}
	return "provider " + rec.Name() + " configured", nil
}

func checkClipboard() (string, error) {
	const sentinel = "stickies-doctor-check"
	prev, _ := clipboard.Read()
	if err := clipboard.Copy(sentinel); err != nil {
		return "", err
	}
	got, err := clipboard.Read()
	if prev != "" {
		clipboard.Copy(prev)
	}
	if err != nil {
		return "", fmt.Errorf("read back clipboard: %w", err)
	}
	if got != sentinel {
		return "", fmt.Errorf("clipboard read back %q, want %q", got, sentinel)
	}
	return "copy and read back verified", nil
}
