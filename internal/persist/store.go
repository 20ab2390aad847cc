package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

// OpenSet captures a session's open-node ids for persistence.
type OpenSet struct {
	Open []schema.NodeID `json:"open"`
}

// Store persists per-session open sets to disk.
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

// Load reads a session's open set from disk.
func (s *Store) Load(session schema.SessionID) (OpenSet, bool, error) {
	path := s.pathForSession(session)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "session", session)
			}
			return OpenSet{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "session", session, "err", err)
		}
		return OpenSet{}, false, err
	}
	var set OpenSet
	if err := json.Unmarshal(data, &set); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "session", session, "err", err)
		}
		return OpenSet{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "session", session, "open", len(set.Open))
	}
	return set, true, nil
}

// Save writes a session's open set to disk.
func (s *Store) Save(session schema.SessionID, set OpenSet) error {
	path := s.pathForSession(session)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "session", session, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "session", session, "open", len(set.Open))
	}
	return nil
}

func (s *Store) pathForSession(session schema.SessionID) string {
	name := sanitize(string(session))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
