package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"stickies/audio"
)

var (
	// ErrUnintelligible means the service heard the audio but produced no text.
	ErrUnintelligible = errors.New("speech not understood")
	// ErrServiceUnavailable covers transport failures, non-200 replies and
	// responses that could not be parsed.
	ErrServiceUnavailable = errors.New("recognition service unavailable")
)

// Recognizer turns one captured utterance into text.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, sample audio.Sample) (string, error)
}

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused bool
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Options struct {
	// Provider is one of groq, openai, deepgram, exec or fake. Empty picks
	// the first provider with an API key in the environment.
	Provider string
	Language string

	ExecCommand string
	ExecModel   string
}

func New(opts Options) (Recognizer, error) {
	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	dgKey := os.Getenv("DEEPGRAM_API_KEY")

	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		switch {
		case groqKey != "":
			provider = "groq"
		case openaiKey != "":
			provider = "openai"
		case dgKey != "":
			provider = "deepgram"
		case opts.ExecCommand != "":
			provider = "exec"
		default:
			return nil, fmt.Errorf("set GROQ_API_KEY, OPENAI_API_KEY or DEEPGRAM_API_KEY, or configure an exec recognizer")
		}
	}

	switch provider {
	case "groq":
		if groqKey == "" {
			return nil, fmt.Errorf("groq provider requires GROQ_API_KEY")
		}
		return NewGroq(groqKey, opts.Language), nil
	case "openai":
		if openaiKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAI(openaiKey, opts.Language), nil
	case "deepgram":
		if dgKey == "" {
			return nil, fmt.Errorf("deepgram provider requires DEEPGRAM_API_KEY")
		}
		return NewDeepgram(dgKey, opts.Language), nil
	case "exec":
		return NewExec(opts.ExecCommand, opts.ExecModel, opts.Language)
	case "fake":
		return NewFake(), nil
	}
	return nil, fmt.Errorf("unknown recognition provider %q", opts.Provider)
}

// unavailable wraps err as ErrServiceUnavailable unless the caller gave up.
func unavailable(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s: %w: %v", provider, ErrServiceUnavailable, err)
}

func statusError(provider string, code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("%s: %w: status %d: %s", provider, ErrServiceUnavailable, code, msg)
}

func finish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}
