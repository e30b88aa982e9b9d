package pgx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolManagerEmpty(t *testing.T) {
	m := NewPoolManager()

	_, err := m.Active()
	assert.Error(t, err)

	_, err = m.Get("default")
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestPoolManagerAddRequiresConfig(t *testing.T) {
	m := NewPoolManager()

	err := m.Add(context.Background(), Pool{Name: "default"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either Config or ConnString")
}
