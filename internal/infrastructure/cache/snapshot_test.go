package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySnapshotCache_Expires(t *testing.T) {
	c := NewMemorySnapshotCache(time.Minute).(*memorySnapshotCache)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "GABC", decimal.RequireFromString("42.5")))

	v, ok, err := c.Get(ctx, "GABC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.RequireFromString("42.5")))

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "GABC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySnapshotCache_Invalidate(t *testing.T) {
	c := NewMemorySnapshotCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "GABC", decimal.NewFromInt(7)))
	require.NoError(t, c.Invalidate(ctx, "GABC"))

	_, ok, err := c.Get(ctx, "GABC")
	require.NoError(t, err)
	assert.False(t, ok)
}
