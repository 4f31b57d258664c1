package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServer, s.Server)
	assert.Equal(t, pkg.ThemeDark, s.Theme)
	assert.Nil(t, s.Session)
}

func TestSessionSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := Load(path)
	require.NoError(t, err)
	s.Session = &Session{AccessToken: "tok", Username: "admin", FullName: "Admin User", ExpiresAt: expires}
	require.NoError(t, s.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Session)
	assert.Equal(t, "tok", reloaded.Session.AccessToken)
	assert.True(t, expires.Equal(reloaded.Session.ExpiresAt))

	sess, ok := reloaded.ActiveSession(expires.Add(-time.Minute))
	assert.True(t, ok)
	assert.Equal(t, "admin", sess.Username)
	_, ok = reloaded.ActiveSession(expires)
	assert.False(t, ok)

	reloaded.ClearSession()
	require.NoError(t, reloaded.Save(path))
	again, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, again.Session)
}

func TestThemeTogglePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, pkg.ThemeLight, s.ToggleTheme())
	require.NoError(t, s.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, pkg.ThemeLight, reloaded.Theme)
	assert.Equal(t, pkg.ThemeDark, reloaded.ToggleTheme())
}

func TestLoad_NormalizesUnknownTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://api:9000\ntheme: purple\n"), 0o600))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://api:9000", s.Server)
	assert.Equal(t, pkg.ThemeDark, s.Theme)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
