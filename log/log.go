package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog       zerolog.Logger
	diagFile      *os.File
	dictationFile *os.File
	logMu         sync.Mutex
	logReady      bool
	pid           int
	dir           string
)

const (
	DiagnosticsFile = "diagnostics_log.txt"
	DictationFile   = "dictation_log.txt"
	CrashFile       = "crash_log.txt"
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: STICKIES_LOG_PATH environment variable
	if envPath := os.Getenv("STICKIES_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics and dictation logs. Every helper in this
// package is a no-op until Init succeeds.
func Init(level zerolog.Level) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, DiagnosticsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	dictationFile, err = os.OpenFile(filepath.Join(dir, DictationFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if dictationFile != nil {
		dictationFile.Close()
		dictationFile = nil
	}
	logReady = false
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func Debug(msg string) {
	if logReady {
		diagLog.Debug().Msg(msg)
	}
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(session, device, provider string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("device", device).
		Str("provider", provider).
		Msg("dictation_start")
}

func SessionEnd(session string, segments, failures int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Int("segments", segments).
		Int("failures", failures).
		Msg("dictation_end")
}

// Recognition records timing for one capture cycle.
func Recognition(session, provider string, audio, elapsed time.Duration, chars int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("provider", provider).
		Float64("audio_s", audio.Seconds()).
		Int64("total_ms", elapsed.Milliseconds()).
		Int("chars", chars).
		Msg("recognition")
}

// Network records HTTP timing of a recognition request.
func Network(provider string, dns, tls, ttfb, total time.Duration, reused bool) {
	if !logReady {
		return
	}
	conn := "new"
	if reused {
		conn = "reused"
	}
	diagLog.Debug().
		Str("provider", provider).
		Str("conn", conn).
		Int64("dns_ms", dns.Milliseconds()).
		Int64("tls_ms", tls.Milliseconds()).
		Int64("ttfb_ms", ttfb.Milliseconds()).
		Int64("total_ms", total.Milliseconds()).
		Msg("recognition_http")
}

func Failure(session, kind string, err error) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Str("session", session).
		Str("kind", kind).
		Err(err).
		Msg("dictation_failure")
}

func NoteSaved(path string, size int) {
	if !logReady {
		return
	}
	diagLog.Info().Str("path", path).Int("bytes", size).Msg("note_saved")
}

// DictationText appends one recognized segment to the dictation log.
func DictationText(note, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if dictationFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, note, text)
	dictationFile.WriteString(line)
}
