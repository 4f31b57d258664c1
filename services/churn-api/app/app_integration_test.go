package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/client"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

const predictionTopic = "churn-predictions-it"

// startContainer runs req and returns host:port for the first exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err, "start %s", req.Image)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = c.Terminate(ctx)
	})
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, nat.Port(req.ExposedPorts[0]))
	require.NoError(t, err)
	return net.JoinHostPort(host, port.Port())
}

func startPostgres(t *testing.T) string {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "churn",
			"POSTGRES_PASSWORD": "churn_password",
			"POSTGRES_DB":       "churnshield",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	// database.New adds the postgres:// scheme
	return fmt.Sprintf("churn:churn_password@%s/churnshield?sslmode=disable", addr)
}

func startRedis(t *testing.T) string {
	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	})
}

func startKafka(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	kc, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("churnshield-it"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = kc.Terminate(ctx)
	})
	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return strings.Join(brokers, ",")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitForReady(ctx context.Context, url string) error {
	hc := &http.Client{Timeout: 500 * time.Millisecond}
	for {
		if ctx.Err() != nil {
			return fmt.Errorf("timeout waiting for %s", url)
		}
		resp, err := hc.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(150 * time.Millisecond)
	}
}

// subscribe returns a consumer that already holds a partition assignment, so nothing
// produced afterwards is missed.
func subscribe(t *testing.T, bootstrap, topic string) *ckafka.Consumer {
	t.Helper()
	consumer, err := ckafka.NewConsumer(&ckafka.ConfigMap{
		"bootstrap.servers": bootstrap,
		"group.id":          uuid.NewString(),
		"auto.offset.reset": "earliest",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = consumer.Close() })
	require.NoError(t, consumer.SubscribeTopics([]string{topic}, nil))

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if parts, _ := consumer.Assignment(); len(parts) > 0 {
			break
		}
		_ = consumer.Poll(100)
	}
	return consumer
}

// startApp boots the full service against real Postgres, Redis and Kafka and returns its base URL.
func startApp(t *testing.T) (baseURL, bootstrap string) {
	t.Helper()
	dsn := startPostgres(t)
	redisAddr := startRedis(t)
	bootstrap = startKafka(t)

	dataPath := filepath.Join(t.TempDir(), "telco.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(datasetCSV), 0o600))
	port := freePort(t)

	t.Setenv("APP_PORT", fmt.Sprintf("%d", port))
	t.Setenv("APP_PRIMARY_DB_ADDR", dsn)
	t.Setenv("APP_REPLICA_DB_ADDR", dsn)
	t.Setenv("APP_REDIS_ADDR", redisAddr)
	t.Setenv("APP_KAFKA_BROKERS", bootstrap)
	t.Setenv("APP_KAFKA_PREDICTION_TOPIC", predictionTopic)
	t.Setenv("APP_KAFKA_PARTITION", "1")
	t.Setenv("APP_JWT_SECRET", "integration-secret-0123456789")
	t.Setenv("APP_AUTH_REQUIRED", "true")
	t.Setenv("APP_DATA_PATH", dataPath)
	t.Setenv("APP_DEMO_USER_ENABLED", "true")

	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	srv, cleanup, err := NewApp(ctx, logger)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err.Error())
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		cleanup()
	})

	baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	require.NoError(t, waitForReady(ctx, baseURL+"/health"))
	return baseURL, bootstrap
}

func TestApp_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test: requires docker")
	}
	baseURL, bootstrap := startApp(t)
	ctx := context.Background()

	// Postgres mode starts without users
	resp, err := http.Post(baseURL+"/init-demo-user", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	api := client.New(baseURL)
	_, err = api.Stats(ctx)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	login, err := api.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "bearer", login.TokenType)
	api.SetToken(login.AccessToken)

	t.Run("predict publishes an event and records a log", func(t *testing.T) {
		consumer := subscribe(t, bootstrap, predictionTopic)

		var record views.CustomerRecord
		require.NoError(t, json.Unmarshal([]byte(customerJSON), &record))
		record.CustomerID = "IT-" + uuid.NewString()[:8]

		res, err := api.Predict(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, record.CustomerID, res.CustomerID)
		assert.InDelta(t, 0.6548, res.ChurnProbability, 1e-4)
		assert.Equal(t, pkg.RiskLevelMedium, res.RiskLevel)
		assert.Len(t, res.Explanations, 5)

		var event views.PredictionEvent
		found := false
		deadline := time.Now().Add(30 * time.Second)
		for time.Now().Before(deadline) && !found {
			msg, err := consumer.ReadMessage(1500 * time.Millisecond)
			if err != nil {
				continue
			}
			if string(msg.Key) == record.CustomerID {
				require.NoError(t, json.Unmarshal(msg.Value, &event))
				found = true
			}
		}
		require.True(t, found, "expected a prediction event keyed by customer id")
		assert.Equal(t, "admin", event.RequestedBy)
		assert.Equal(t, res.RiskLevel, event.RiskLevel)
		assert.NotEmpty(t, event.TraceID)

		require.Eventually(t, func() bool {
			logs, err := api.Logs(ctx, 10)
			if err != nil {
				return false
			}
			for _, l := range logs {
				if l.CustomerID == record.CustomerID {
					return l.PredictionClass == 1 && l.RiskLevel == pkg.RiskLevelMedium
				}
			}
			return false
		}, 15*time.Second, 200*time.Millisecond)
	})

	t.Run("stats come from the dataset and are cached", func(t *testing.T) {
		first, err := api.Stats(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, first.TotalCustomers)
		assert.InDelta(t, 50.0, first.ChurnRate, 1e-9)

		second, err := api.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		require.NoError(t, api.Logout(ctx))
		_, err := api.Logs(ctx, 10)
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})
}
