// Package journal records dictation sessions in a local SQLite database so a
// note's dictation history survives restarts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"stickies/audio"
	"stickies/dictation"
	"stickies/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	note TEXT NOT NULL,
	device TEXT NOT NULL,
	startedAt REAL NOT NULL,
	endedAt REAL,
	segments INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS segments (
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	text TEXT NOT NULL,
	createdAt REAL NOT NULL,
	PRIMARY KEY (sessionId, seq)
);
CREATE TABLE IF NOT EXISTS failures (
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	error TEXT NOT NULL,
	createdAt REAL NOT NULL,
	PRIMARY KEY (sessionId, seq)
);
CREATE INDEX IF NOT EXISTS idx_sessions_note ON sessions(note, startedAt);
`

type Session struct {
	ID        string
	Note      string
	Device    string
	StartedAt time.Time
	EndedAt   *time.Time
	Segments  int
}

type Segment struct {
	Seq       int
	Text      string
	CreatedAt time.Time
}

type Failure struct {
	Seq       int
	Kind      string
	Error     string
	CreatedAt time.Time
}

type Journal struct {
	db    *sql.DB
	clock func() time.Time
}

func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "stickies", "journal.sqlite")
}

func Open(ctx context.Context, path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db, clock: time.Now}, nil
}

// dsn escapes path so '?', '#' and '%' in a directory name stay part of the
// file name.
func dsn(path string) string {
	u := url.URL{Path: filepath.ToSlash(path)}
	return "file:" + u.EscapedPath() + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// For returns an observer that files sessions under the given note title.
func (j *Journal) For(note string) dictation.Observer {
	return j.ForNote(func() string { return note })
}

// ForNote is like For but asks for the title when each session starts, so
// sessions after a rename are filed under the new name.
func (j *Journal) ForNote(title func() string) dictation.Observer {
	return &noteObserver{j: j, title: title}
}

type noteObserver struct {
	j     *Journal
	title func() string
}

func (o *noteObserver) SessionStarted(session string, device *audio.DeviceInfo) {
	_, err := o.j.db.Exec(`INSERT INTO sessions (id, note, device, startedAt) VALUES (?, ?, ?, ?)`,
		session, o.title(), device.Label(), unixTime(o.j.clock()))
	if err != nil {
		log.Warnf("journal: record session start: %v", err)
	}
}

func (o *noteObserver) SessionEnded(session string, segments int) {
	_, err := o.j.db.Exec(`UPDATE sessions SET endedAt = ?, segments = ? WHERE id = ?`,
		unixTime(o.j.clock()), segments, session)
	if err != nil {
		log.Warnf("journal: record session end: %v", err)
	}
}

func (o *noteObserver) Recognized(r dictation.Result) {
	_, err := o.j.db.Exec(`INSERT INTO segments (sessionId, seq, text, createdAt) VALUES (?, ?, ?, ?)`,
		r.Session, r.Seq, r.Text, unixTime(o.j.clock()))
	if err != nil {
		log.Warnf("journal: record segment: %v", err)
	}
}

func (o *noteObserver) Failed(r dictation.Result) {
	msg := ""
	if r.Err != nil {
		msg = r.Err.Error()
	}
	_, err := o.j.db.Exec(`INSERT INTO failures (sessionId, seq, kind, error, createdAt) VALUES (?, ?, ?, ?, ?)`,
		r.Session, r.Seq, r.Failure.String(), msg, unixTime(o.j.clock()))
	if err != nil {
		log.Warnf("journal: record failure: %v", err)
	}
}

// Sessions returns a note's sessions, newest first.
func (j *Journal) Sessions(note string) ([]Session, error) {
	rows, err := j.db.Query(`
		SELECT id, note, device, startedAt, endedAt, segments
		FROM sessions
		WHERE note = ?
		ORDER BY startedAt DESC
	`, note)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var startedAt float64
		var endedAt sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.Note, &s.Device, &startedAt, &endedAt, &s.Segments); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = timeFromUnix(startedAt)
		if endedAt.Valid {
			t := timeFromUnix(endedAt.Float64)
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *Journal) Segments(session string) ([]Segment, error) {
	rows, err := j.db.Query(`
		SELECT seq, text, createdAt FROM segments
		WHERE sessionId = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var s Segment
		var createdAt float64
		if err := rows.Scan(&s.Seq, &s.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		s.CreatedAt = timeFromUnix(createdAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *Journal) Failures(session string) ([]Failure, error) {
	rows, err := j.db.Query(`
		SELECT seq, kind, error, createdAt FROM failures
		WHERE sessionId = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		var createdAt float64
		if err := rows.Scan(&f.Seq, &f.Kind, &f.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.CreatedAt = timeFromUnix(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

func unixTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
