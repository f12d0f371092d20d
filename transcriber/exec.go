package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"stickies/audio"
	"stickies/encoder"
)

// Exec runs a local speech-to-text command once per utterance. The command
// receives --audio <wav> and prints either {"text": "..."} or plain text.
type Exec struct {
	cmd   []string
	model string
	lang  string
	mu    sync.Mutex
}

func NewExec(command, model, lang string) (*Exec, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse exec command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("exec command is empty")
	}
	return &Exec{cmd: args, model: model, lang: lang}, nil
}

func (e *Exec) Name() string { return "exec" }

func (e *Exec) Recognize(ctx context.Context, sample audio.Sample) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	file, err := os.CreateTemp("", "stickies_utt_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())

	channels := sample.Channels
	if channels <= 0 {
		channels = 1
	}
	if err := encoder.WriteWAV(file, sample.PCM, sample.SampleRate, channels); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close wav: %w", err)
	}

	args := append([]string{}, e.cmd[1:]...)
	args = append(args, "--audio", file.Name())
	if e.model != "" {
		args = append(args, "--model", e.model)
	}
	if e.lang != "" {
		args = append(args, "--language", e.lang)
	}

	command := exec.CommandContext(ctx, e.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("exec: %w: %v: %s", ErrServiceUnavailable, err, strings.TrimSpace(stderr.String()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) > 0 && out[0] == '{' {
		var resp struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(out, &resp); err != nil {
			return "", fmt.Errorf("exec: %w: decode response: %v", ErrServiceUnavailable, err)
		}
		return finish(resp.Text)
	}
	return finish(string(out))
}
