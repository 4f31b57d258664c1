package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	_, err := repo.FindByUsername(ctx, "admin")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	created, err := repo.CreateIfAbsent(ctx, models.User{Username: "admin", Password: "h1", FullName: "Admin User"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, models.User{Username: "admin", Password: "h2"})
	require.NoError(t, err)
	assert.False(t, created)

	u, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "h1", u.Password)
	assert.Equal(t, pkg.ThemeDark, u.Theme)

	// Create replaces credentials but keeps id and theme
	require.NoError(t, repo.UpdateTheme(ctx, "admin", pkg.ThemeLight))
	u, err = repo.Create(ctx, models.User{Username: "admin", Password: "h3", FullName: "Root"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "h3", u.Password)
	assert.Equal(t, pkg.ThemeLight, u.Theme)

	assert.ErrorIs(t, repo.UpdateTheme(ctx, "ghost", pkg.ThemeLight), pgx.ErrNoRows)
}

func TestMemoryPredictionLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPredictionLogRepository()
	fixed := time.Date(2024, 3, 20, 10, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	for i, risk := range []pkg.RiskLevel{pkg.RiskLevelLow, pkg.RiskLevelHigh, pkg.RiskLevelHigh, pkg.RiskLevelMedium} {
		l, err := repo.Create(ctx, models.PredictionLog{CustomerID: "CUST-" + string(rune('A'+i)), RiskLevel: risk})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), l.ID)
		assert.Equal(t, fixed, l.PredictionDate)
	}

	recent, err := repo.FindRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []int64{4, 3, 2}, []int64{recent[0].ID, recent[1].ID, recent[2].ID})

	counts, err := repo.CountByRiskLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[pkg.RiskLevel]int64{pkg.RiskLevelLow: 1, pkg.RiskLevelMedium: 1, pkg.RiskLevelHigh: 2}, counts)
}

func TestMemoryInterventionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInterventionRepository()

	first, created, err := repo.Open(ctx, models.Intervention{CustomerID: "C-1", RiskLevel: pkg.RiskLevelHigh, ChurnProbability: 0.8})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.InterventionOpen, first.Status)

	refreshed, created, err := repo.Open(ctx, models.Intervention{CustomerID: "C-1", RiskLevel: pkg.RiskLevelHigh, ChurnProbability: 0.9})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, refreshed.ID)
	assert.Equal(t, 0.9, refreshed.ChurnProbability)

	_, _, err = repo.Open(ctx, models.Intervention{CustomerID: "C-2", RiskLevel: pkg.RiskLevelHigh, ChurnProbability: 0.75})
	require.NoError(t, err)
	n, err := repo.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := repo.Resolve(ctx, "C-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Resolve(ctx, "C-1")
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ = repo.CountOpen(ctx)
	assert.Equal(t, int64(1), n)
}
