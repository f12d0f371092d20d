package note

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultExt = ".txt"

var ErrBadTitle = errors.New("invalid note title")

// Dir is the notes directory. Every note is a <title><Ext> file directly
// inside Root.
type Dir struct {
	Root string
	Ext  string
}

func NewDir(root, ext string) Dir {
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return Dir{Root: root, Ext: ext}
}

func (d Dir) Ensure() error {
	if err := os.MkdirAll(d.Root, 0755); err != nil {
		return fmt.Errorf("%w: create notes directory: %v", ErrIO, err)
	}
	return nil
}

func (d Dir) PathFor(title string) (string, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "", title == ".", title == "..":
		return "", fmt.Errorf("%w: %q", ErrBadTitle, title)
	case strings.ContainsAny(title, `/\`), strings.ContainsRune(title, os.PathSeparator):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrBadTitle, title)
	}
	if strings.HasSuffix(strings.ToLower(title), strings.ToLower(d.Ext)) {
		title = title[:len(title)-len(d.Ext)]
	}
	return filepath.Join(d.Root, title+d.Ext), nil
}

// List returns note titles sorted case-insensitively.
func (d Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list notes: %v", ErrIO, err)
	}
	var titles []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), d.Ext) {
			continue
		}
		titles = append(titles, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Slice(titles, func(i, j int) bool {
		return strings.ToLower(titles[i]) < strings.ToLower(titles[j])
	})
	return titles, nil
}
