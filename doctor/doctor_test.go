package doctor

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"stickies/audio"
	"stickies/note"
	"stickies/transcriber"
)

func tone(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := range samples {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	return pcm
}

func fakeEnv(t *testing.T, pcm []byte) Env {
	t.Helper()
	fake := audio.NewFakeContext(pcm, false)
	fake.SetDevices(audio.DeviceInfo{ID: "0", Name: "Built-in Mic"})
	return Env{
		Dir:       note.NewDir(t.TempDir(), ""),
		Audio:     fake,
		Registry:  audio.NewRegistry(fake),
		Recognize: transcriber.Options{Provider: "fake"},
		Listen:    200 * time.Millisecond,
	}
}

func TestRunReportsFailures(t *testing.T) {
	checks := []Check{
		{"ok", func(context.Context) (string, error) { return "fine", nil }},
		{"broken", func(context.Context) (string, error) { return "", errors.New("boom") }},
	}
	var out bytes.Buffer
	if code := Run(context.Background(), &out, checks); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	for _, want := range []string{"[1/2] ok", "PASS: fine", "[2/2] broken", "FAIL: boom", "1 check(s) failed"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunSkipsAfterInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	checks := []Check{{"late", func(context.Context) (string, error) { ran = true; return "", nil }}}
	var out bytes.Buffer
	if code := Run(ctx, &out, checks); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if ran {
		t.Error("check ran after interrupt")
	}
}

func TestStandardChecksPass(t *testing.T) {
	env := fakeEnv(t, tone(8000))
	var out bytes.Buffer
	if code := Run(context.Background(), &out, Checks(env)); code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "provider fake configured") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestCheckDevices(t *testing.T) {
	env := fakeEnv(t, nil)
	tests := []struct {
		name    string
		device  string
		wantErr bool
	}{
		{"default", "", false},
		{"present", "Built-in Mic", false},
		{"stale", "USB Mic", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkDevices(env.Registry, tt.device)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckMicrophoneSilence(t *testing.T) {
	env := fakeEnv(t, nil)
	_, err := checkMicrophone(context.Background(), env.Audio, env.Registry, "", env.Listen)
	if err == nil || !strings.Contains(err.Error(), "silence") {
		t.Errorf("err = %v, want silence failure", err)
	}
}

func TestCheckRecognizerUnknown(t *testing.T) {
	if _, err := checkRecognizer(transcriber.Options{Provider: "nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
