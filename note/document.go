package note

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrNotFound = fmt.Errorf("note not found: %w", fs.ErrNotExist)
	ErrIO       = errors.New("note i/o failure")
)

// Document is the in-memory buffer of one note file. The buffer only
// reaches disk on Save.
type Document struct {
	mu     sync.Mutex
	path   string
	buf    strings.Builder
	synced string // content as last loaded or saved
}

func New(path string) *Document {
	return &Document{path: path}
}

// Open returns a document for path, loading it when the file exists. A
// missing file yields an empty buffer.
func Open(path string) (*Document, error) {
	d := New(path)
	if _, err := d.Load(); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return d, nil
}

func (d *Document) Load() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", d.path, ErrNotFound)
		}
		return "", fmt.Errorf("%w: read %s: %v", ErrIO, d.path, err)
	}
	text := string(data)
	d.buf.Reset()
	d.buf.WriteString(text)
	d.synced = text
	return text, nil
}

// Save writes the trimmed buffer. The buffer itself keeps its whitespace.
func (d *Document) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked()
}

func (d *Document) SaveAs(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
	return d.saveLocked()
}

func (d *Document) saveLocked() error {
	content := strings.TrimSpace(d.buf.String())
	if err := os.WriteFile(d.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, d.path, err)
	}
	d.synced = content
	return nil
}

// Append adds segment at the end of the buffer, wherever the user's
// cursor is.
func (d *Document) Append(segment string) {
	d.mu.Lock()
	d.buf.WriteString(segment)
	d.mu.Unlock()
}

func (d *Document) Replace(text string) {
	d.mu.Lock()
	d.buf.Reset()
	d.buf.WriteString(text)
	d.mu.Unlock()
}

func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}

func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

func (d *Document) Title() string {
	base := filepath.Base(d.Path())
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Dirty reports whether the buffer differs from what was last loaded or
// saved, ignoring the whitespace Save trims.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.buf.String()) != strings.TrimSpace(d.synced)
}

// ChangedOnDisk reports whether the file no longer holds what this
// document last loaded or saved.
func (d *Document) ChangedOnDisk() bool {
	d.mu.Lock()
	path, synced := d.path, d.synced
	d.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return !errors.Is(err, fs.ErrNotExist) || synced != ""
	}
	return string(data) != synced
}
