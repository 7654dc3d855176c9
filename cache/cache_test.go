package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type board struct {
	PoolID  string `json:"pool_id"`
	Indices []int  `json:"indices"`
}

func TestRedisCacheSetGetDelete(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache([]string{mr.Addr()})
	require.NoError(t, err)

	ctx := context.Background()
	key := SlotBoardKey("pol_test")
	want := board{PoolID: "pol_test", Indices: []int{0, 1, 2}}

	err = c.Set(ctx, key, want, time.Minute)
	require.NoError(t, err)

	var got board
	err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	err = c.Delete(ctx, key)
	require.NoError(t, err)
}

func TestRedisCacheMissIsNotAnError(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache([]string{mr.Addr()})
	require.NoError(t, err)

	var got board
	err = c.Get(context.Background(), SlotBoardKey("pol_missing"), &got)
	assert.NoError(t, err)
	assert.Empty(t, got.PoolID)
}

func TestSlotBoardKey(t *testing.T) {
	assert.Equal(t, "slots:pol_1", SlotBoardKey("pol_1"))
}
