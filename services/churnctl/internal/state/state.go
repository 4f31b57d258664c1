// Package state persists churnctl's client-side state: the server address,
// the current session and the theme preference.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"gopkg.in/yaml.v3"
)

const DefaultServer = "http://localhost:8000"

type Session struct {
	AccessToken string    `yaml:"access_token"`
	Username    string    `yaml:"username"`
	FullName    string    `yaml:"full_name"`
	ExpiresAt   time.Time `yaml:"expires_at"`
}

type State struct {
	Server  string    `yaml:"server"`
	Session *Session  `yaml:"session,omitempty"`
	Theme   pkg.Theme `yaml:"theme"`
}

// DefaultPath is $XDG_CONFIG_HOME/churnshield/state.yaml (~/.config on Linux).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "churnshield", "state.yaml"), nil
}

// Load reads the state file; a missing file yields defaults.
func Load(path string) (*State, error) {
	s := &State{Server: DefaultServer, Theme: pkg.ThemeDark}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Server == "" {
		s.Server = DefaultServer
	}
	if s.Theme != pkg.ThemeLight {
		s.Theme = pkg.ThemeDark
	}
	return s, nil
}

// Save writes the file atomically with owner-only permissions since it holds a token.
func (s *State) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ActiveSession returns the session unless it is missing or expired.
func (s *State) ActiveSession(now time.Time) (*Session, bool) {
	if s.Session == nil || s.Session.AccessToken == "" {
		return nil, false
	}
	if !s.Session.ExpiresAt.IsZero() && !now.Before(s.Session.ExpiresAt) {
		return nil, false
	}
	return s.Session, true
}

func (s *State) ClearSession() { s.Session = nil }

// ToggleTheme flips between dark and light and returns the new theme.
func (s *State) ToggleTheme() pkg.Theme {
	if s.Theme == pkg.ThemeLight {
		s.Theme = pkg.ThemeDark
	} else {
		s.Theme = pkg.ThemeLight
	}
	return s.Theme
}
