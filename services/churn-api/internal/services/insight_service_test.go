package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/cache"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const telcoSample = `customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges,Churn
7590-VHVEG,Female,0,Yes,No,1,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,29.85,29.85,No
5575-GNVDE,Male,0,No,No,34,Yes,No,DSL,Yes,No,Yes,No,No,No,One year,No,Mailed check,56.95,1889.5,No
3668-QPYBK,Male,0,No,No,2,Yes,No,DSL,Yes,Yes,No,No,No,No,Month-to-month,Yes,Mailed check,53.85,108.15,Yes
4472-LVYGI,Female,0,Yes,Yes,0,No,No phone service,DSL,Yes,No,Yes,Yes,Yes,No,Two year,Yes,Bank transfer (automatic),52.55, ,No
9237-HQITU,Female,0,No,No,2,Yes,No,Fiber optic,No,No,No,No,No,No,Month-to-month,Yes,Electronic check,70.70,151.65,Yes
`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telco.csv")
	require.NoError(t, os.WriteFile(path, []byte(telcoSample), 0o600))
	return path
}

func TestStats_DefaultDistributionWithoutLogs(t *testing.T) {
	svc := NewInsightService(InsightServiceConfig{
		Logger:   zaptest.NewLogger(t),
		Logs:     repositories.NewMemoryPredictionLogRepository(),
		DataPath: writeDataset(t),
	})

	stats, err := svc.Stats(context.Background(), "trace")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalCustomers)
	assert.Equal(t, 40.0, stats.ChurnRate)
	assert.InDelta(t, 124.55, stats.MonthlyRevenueAtRisk, 1e-9)
	assert.Zero(t, stats.ActiveInterventions)
	assert.False(t, stats.DistributionFromLogs)

	require.Len(t, stats.RiskDistribution, 3)
	assert.Equal(t, "Low Risk", stats.RiskDistribution[0].Label)
	assert.Equal(t, 65.0, stats.RiskDistribution[0].Value)
	assert.Equal(t, "#10b981", stats.RiskDistribution[0].Color)
	assert.Equal(t, 22.0, stats.RiskDistribution[1].Value)
	assert.Equal(t, 13.0, stats.RiskDistribution[2].Value)
}

func TestStats_DistributionFromLogs(t *testing.T) {
	logs := repositories.NewMemoryPredictionLogRepository()
	for i, level := range []pkg.RiskLevel{pkg.RiskLevelHigh, pkg.RiskLevelHigh, pkg.RiskLevelLow} {
		l := logFor(fmt.Sprintf("C-%d", i))
		l.RiskLevel = level
		_, err := logs.Create(context.Background(), l)
		require.NoError(t, err)
	}
	svc := NewInsightService(InsightServiceConfig{Logger: zaptest.NewLogger(t), Logs: logs, DataPath: writeDataset(t)})

	stats, err := svc.Stats(context.Background(), "trace")
	require.NoError(t, err)
	assert.True(t, stats.DistributionFromLogs)
	assert.Equal(t, int64(3), stats.PredictionsLogged)
	assert.Equal(t, int64(2), stats.ActiveInterventions)
	assert.Equal(t, 33.3, stats.RiskDistribution[0].Value)
	assert.Equal(t, 0.0, stats.RiskDistribution[1].Value)
	assert.Equal(t, 66.7, stats.RiskDistribution[2].Value)
}

func TestStats_ServedFromCacheOnSecondCall(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	path := writeDataset(t)
	svc := NewInsightService(InsightServiceConfig{
		Logger:   zaptest.NewLogger(t),
		Logs:     repositories.NewMemoryPredictionLogRepository(),
		DataPath: path,
		Cache:    cache.NewJSONCache(client, "churnshield:stats:"),
		CacheTTL: time.Minute,
	})

	first, err := svc.Stats(context.Background(), "trace")
	require.NoError(t, err)
	assert.True(t, mr.Exists("churnshield:stats:dashboard"))

	// the dataset is gone, so only the cache can answer
	require.NoError(t, os.Remove(path))
	second, err := svc.Stats(context.Background(), "trace")
	require.NoError(t, err)
	assert.Equal(t, first.TotalCustomers, second.TotalCustomers)
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))

	mr.FastForward(2 * time.Minute)
	_, err = svc.Stats(context.Background(), "trace")
	require.Error(t, err)
}

func TestStats_MissingDataset(t *testing.T) {
	svc := NewInsightService(InsightServiceConfig{
		Logger:   zaptest.NewLogger(t),
		Logs:     repositories.NewMemoryPredictionLogRepository(),
		DataPath: filepath.Join(t.TempDir(), "missing.csv"),
	})
	_, err := svc.Stats(context.Background(), "trace")
	require.Error(t, err)
	code := appErrCode(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, code.Status)
	assert.Contains(t, err.Error(), "Dataset not found")
}

func TestRecentLogs_Limits(t *testing.T) {
	logs := repositories.NewMemoryPredictionLogRepository()
	for i := 0; i < 120; i++ {
		_, err := logs.Create(context.Background(), logFor(fmt.Sprintf("C-%d", i)))
		require.NoError(t, err)
	}
	svc := NewInsightService(InsightServiceConfig{Logger: zaptest.NewLogger(t), Logs: logs})

	entries, err := svc.RecentLogs(context.Background(), "trace", 0)
	require.NoError(t, err)
	require.Len(t, entries, DefaultLogLimit)
	assert.Equal(t, "C-119", entries[0].CustomerID)
	assert.Greater(t, entries[0].ID, entries[1].ID)

	entries, err = svc.RecentLogs(context.Background(), "trace", 500)
	require.NoError(t, err)
	assert.Len(t, entries, MaxLogLimit)
}

func TestFeatures_ReturnsCopy(t *testing.T) {
	svc := NewInsightService(InsightServiceConfig{Logger: zaptest.NewLogger(t)})
	catalog := svc.Features()
	require.NotEmpty(t, catalog.Categorical)
	require.NotEmpty(t, catalog.Numerical)

	catalog.Categorical[0].Name = "mutated"
	assert.NotEqual(t, "mutated", svc.Features().Categorical[0].Name)
}
