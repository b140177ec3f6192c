package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posdoctor/internal/domain"
)

func TestMemoryReportCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryReportCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, LastRepairKey, &domain.RepairResult{RunID: "repair-1", FixedShifts: 2}, time.Minute))

	got, ok, err := c.Get(ctx, LastRepairKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "repair-1", got.RunID)
	assert.Equal(t, 2, got.FixedShifts)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, LastRepairKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryReportCacheReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryReportCache()
	require.NoError(t, c.Set(ctx, LastRepairKey, &domain.RepairResult{RunID: "a"}, 0))

	got, _, _ := c.Get(ctx, LastRepairKey)
	got.RunID = "mutated"

	again, ok, _ := c.Get(ctx, LastRepairKey)
	require.True(t, ok)
	assert.Equal(t, "a", again.RunID)
}

func TestNoopReportCacheMisses(t *testing.T) {
	c := NoopReportCache{}
	require.NoError(t, c.Set(context.Background(), LastRepairKey, &domain.RepairResult{}, time.Minute))
	_, ok, err := c.Get(context.Background(), LastRepairKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisReportCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("POSDOCTOR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POSDOCTOR_TEST_REDIS_ADDR is not set")
	}
	ctx := context.Background()
	c := NewRedisReportCache(addr, "", 0, "posdoctor-test")
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	require.NoError(t, c.Set(ctx, LastRepairKey, &domain.RepairResult{RunID: "repair-redis", Success: true}, time.Minute))
	got, ok, err := c.Get(ctx, LastRepairKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "repair-redis", got.RunID)
	assert.True(t, got.Success)
}
