package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDSN(t *testing.T) {
	masked := maskDSN("postgres://churn:secret@db:5432/churnshield?sslmode=disable")
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "churn:")
	assert.Contains(t, masked, "@db:5432/churnshield?sslmode=disable")
	assert.Equal(t, "postgres://db:5432/churnshield", maskDSN("postgres://db:5432/churnshield"))
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	assert.NoError(t, err)
	assert.Len(t, entries, 6)
}
