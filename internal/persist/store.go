// Package persist stores per-user workspace snapshots as JSON files
// under the state directory.
package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// BufferSnapshot captures buffer state for persistence.
type BufferSnapshot struct {
	Lines        []string `json:"lines"`
	ScrollOffset int      `json:"scroll_offset"`
}

// TabSnapshot captures a tab for persistence. Live run handles and the
// closing state are never persisted; tabs always restore as idle.
type TabSnapshot struct {
	ID        schema.TabID      `json:"id"`
	Title     schema.TabTitle   `json:"title"`
	Project   schema.ProjectRef `json:"project"`
	Engine    schema.EngineID   `json:"engine"`
	Model     schema.ModelID    `json:"model,omitempty"`
	SessionID schema.SessionID  `json:"session_id,omitempty"`
	Buffer    BufferSnapshot    `json:"buffer"`
	History   []string          `json:"history,omitempty"`
}

// WindowSnapshot captures a detached window for persistence.
type WindowSnapshot struct {
	Label     schema.WindowLabel `json:"label"`
	Title     schema.TabTitle    `json:"title"`
	Project   schema.ProjectRef  `json:"project"`
	Engine    schema.EngineID    `json:"engine"`
	SessionID schema.SessionID   `json:"session_id,omitempty"`
}

// UserSnapshot captures a user's workspace state for persistence.
type UserSnapshot struct {
	Order   []schema.TabID   `json:"order"`
	Active  schema.TabID     `json:"active,omitempty"`
	Tabs    []TabSnapshot    `json:"tabs"`
	Windows []WindowSnapshot `json:"windows,omitempty"`
	System  BufferSnapshot   `json:"system,omitempty"`
	Theme   schema.ThemeName `json:"theme,omitempty"`
}

// Store persists user snapshots to disk, one file per user.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a user snapshot from disk. A missing file is not an
// error; the second return value reports whether a snapshot existed.
func (s *Store) Load(userID schema.UserID) (UserSnapshot, bool, error) {
	var snapshot UserSnapshot
	data, err := os.ReadFile(s.pathForUser(userID))
	switch {
	case errors.Is(err, os.ErrNotExist):
		if s.log != nil {
			s.log.Debug("state load miss", "user", userID)
		}
		return UserSnapshot{}, false, nil
	case err == nil:
		err = json.Unmarshal(data, &snapshot)
	}
	if err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "user", userID, "err", err)
		}
		return UserSnapshot{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "user", userID, "tabs", len(snapshot.Tabs))
	}
	return snapshot, true, nil
}

// Save writes a user snapshot to disk. The write is atomic: data lands
// in a temp file which is synced, chmodded, and renamed into place.
func (s *Store) Save(userID schema.UserID, snapshot UserSnapshot) error {
	if err := s.write(s.pathForUser(userID), snapshot); err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "user", userID, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "user", userID, "tabs", len(snapshot.Tabs))
	}
	return nil
}

func (s *Store) write(path string, snapshot UserSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return replaceFile(path, data)
}

// replaceFile writes data next to path and renames it into place. The
// temp file is removed on any failure.
func replaceFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o600); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) pathForUser(userID schema.UserID) string {
	name := sanitize(string(userID))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

// sanitize maps a user id onto a safe file name. Anything outside
// letters, digits, and -_. becomes an underscore.
func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
