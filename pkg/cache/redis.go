package cache

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection options. Addr is "host:port"; zero values use defaults.
type Config struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	UseTLS      bool
	DialTimeout time.Duration
	ReadTimeout time.Duration
	PoolSize    int
	MaxRetries  int
}

// New returns a connected redis.Client and a closer.
func New(ctx context.Context, cfg Config) (*redis.Client, func(), error) {
	opts := &redis.Options{
		Addr:            cfg.Addr,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     orDuration(cfg.DialTimeout, 3*time.Second),
		ReadTimeout:     orDuration(cfg.ReadTimeout, time.Second),
		WriteTimeout:    orDuration(cfg.ReadTimeout, time.Second),
		PoolSize:        orInt(cfg.PoolSize, 10),
		MaxRetries:      orInt(cfg.MaxRetries, 2),
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func orDuration(v, d time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return d
}

func orInt(v, d int) int {
	if v > 0 {
		return v
	}
	return d
}
