// Package start records the running "infobase serve" process in the
// .infobase/ directory so other commands can find its endpoints.
package start

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/nrashid7/infobase/pkg/dotdir"
)

const (
	stateFileName = "serve.json"
	lockFileName  = "serve.lock"
	stateVersion  = 1
)

// ErrAlreadyRunning is returned by Acquire when another serve process holds
// the lock.
var ErrAlreadyRunning = errors.New("infobase serve is already running")

// State describes a running serve process.
type State struct {
	Version   int       `json:"version"`
	PID       int       `json:"pid"`
	ProxyURL  string    `json:"proxy_url,omitempty"`
	APIURL    string    `json:"api_url,omitempty"`
	Storage   string    `json:"storage,omitempty"`
	Knowledge string    `json:"knowledge,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alive reports whether the recorded process still exists.
func (s *State) Alive() bool {
	if s == nil || s.PID <= 0 {
		return false
	}
	p, err := os.FindProcess(s.PID)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

type Manager struct {
	Dir       string
	StatePath string
	LockPath  string
}

// Lock is held for the lifetime of a serve process.
type Lock struct {
	fl *flock.Flock
}

func NewManager(configDir string) (*Manager, error) {
	dir, err := dotdir.NewManager().Ensure(configDir)
	if err != nil {
		return nil, err
	}

	return &Manager{
		Dir:       dir,
		StatePath: filepath.Join(dir, stateFileName),
		LockPath:  filepath.Join(dir, lockFileName),
	}, nil
}

// Acquire takes the serve lock without blocking.
func (m *Manager) Acquire() (*Lock, error) {
	fl := flock.New(m.LockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", m.LockPath, err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("unlocking serve lock: %w", err)
	}
	return nil
}

// LoadState returns the recorded state, or nil when none is recorded.
func (m *Manager) LoadState() (*State, error) {
	data, err := os.ReadFile(m.StatePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading serve state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing serve state: %w", err)
	}

	return state, nil
}

// Running returns the recorded state when its process is still alive.
func (m *Manager) Running() (*State, error) {
	state, err := m.LoadState()
	if err != nil || !state.Alive() {
		return nil, err
	}
	return state, nil
}

// SaveState writes state atomically.
func (m *Manager) SaveState(state *State) error {
	if state == nil {
		return errors.New("cannot save nil state")
	}
	if state.Version == 0 {
		state.Version = stateVersion
	}
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling serve state: %w", err)
	}

	tmpFile, err := os.CreateTemp(m.Dir, "serve-state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}

	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), m.StatePath); err != nil {
		return fmt.Errorf("persisting state file: %w", err)
	}

	return nil
}

func (m *Manager) ClearState() error {
	if err := os.Remove(m.StatePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing serve state: %w", err)
	}
	return nil
}
