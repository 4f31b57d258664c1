package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/database"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

// startPostgres runs a disposable Postgres and returns a DSN without the postgres:// prefix.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const (
		user     = "churn"
		password = "churn_password"
		dbName   = "churnshield"
	)
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     user,
				"POSTGRES_PASSWORD": password,
				"POSTGRES_DB":       dbName,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = pgC.Terminate(ctx)
	})

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port.Port(), dbName)
	return strings.TrimPrefix(dsn, "postgres://")
}

func TestPostgresRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test: requires docker")
	}
	logger := zaptest.NewLogger(t)
	dsn := startPostgres(t)
	require.NoError(t, database.RunMigrations(logger, dsn))

	ctx := context.Background()
	db, closer, err := database.New(ctx, logger, database.Config{PrimaryDSN: dsn, ReadDSNs: []string{dsn}, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(closer)
	require.NoError(t, db.Ping(ctx))

	t.Run("users", func(t *testing.T) {
		users := NewUserRepository(db)
		_, err := users.FindByUsername(ctx, "admin")
		assert.ErrorIs(t, err, pgx.ErrNoRows)

		created, err := users.CreateIfAbsent(ctx, models.User{Username: "admin", Password: "hash-1", FullName: "Admin User"})
		require.NoError(t, err)
		assert.True(t, created)
		created, err = users.CreateIfAbsent(ctx, models.User{Username: "admin", Password: "hash-2"})
		require.NoError(t, err)
		assert.False(t, created)

		require.NoError(t, users.UpdateTheme(ctx, "admin", pkg.ThemeLight))
		u, err := users.Create(ctx, models.User{Username: "admin", Password: "hash-3", FullName: "Root"})
		require.NoError(t, err)
		assert.Equal(t, pkg.ThemeLight, u.Theme)

		u, err = users.FindByUsername(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, "hash-3", u.Password)
		assert.Equal(t, "Root", u.FullName)

		assert.ErrorIs(t, users.UpdateTheme(ctx, "ghost", pkg.ThemeDark), pgx.ErrNoRows)
	})

	t.Run("prediction logs", func(t *testing.T) {
		logs := NewPredictionLogRepository(db)
		for _, risk := range []pkg.RiskLevel{pkg.RiskLevelHigh, pkg.RiskLevelLow, pkg.RiskLevelHigh} {
			l, err := logs.Create(ctx, models.PredictionLog{CustomerID: "CUST-1", PredictionProb: 0.5, PredictionClass: 0, RiskLevel: risk})
			require.NoError(t, err)
			assert.NotZero(t, l.ID)
			assert.False(t, l.PredictionDate.IsZero())
		}

		recent, err := logs.FindRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Greater(t, recent[0].ID, recent[1].ID)

		counts, err := logs.CountByRiskLevel(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[pkg.RiskLevelHigh])
		assert.Equal(t, int64(1), counts[pkg.RiskLevelLow])

		_, err = logs.Create(ctx, models.PredictionLog{CustomerID: "CUST-2", PredictionProb: 1.5, RiskLevel: pkg.RiskLevelHigh})
		appErr := pkg.HandleSQLError("trace", logger, err)
		assert.ErrorContains(t, appErr, "check constraint")
	})
	t.Run("interventions", func(t *testing.T) {
		repo := NewInterventionRepository(db)
		in, created, err := repo.Open(ctx, models.Intervention{CustomerID: "CUST-9", RiskLevel: pkg.RiskLevelHigh, ChurnProbability: 0.81, TraceID: "t-1"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.InterventionOpen, in.Status)

		again, created, err := repo.Open(ctx, models.Intervention{CustomerID: "CUST-9", RiskLevel: pkg.RiskLevelHigh, ChurnProbability: 0.9, TraceID: "t-2"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, in.ID, again.ID)

		n, err := repo.CountOpen(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		ok, err := repo.Resolve(ctx, "CUST-9")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.Resolve(ctx, "CUST-9")
		require.NoError(t, err)
		assert.False(t, ok)

		// a resolved customer can be opened again
		_, created, err = repo.Open(ctx, models.Intervention{CustomerID: "CUST-9", RiskLevel: pkg.RiskLevelHigh, ChurnProbability: 0.75})
		require.NoError(t, err)
		assert.True(t, created)
	})
}
