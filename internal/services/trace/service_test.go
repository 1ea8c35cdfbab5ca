package trace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/storage/memory"
)

type failingStore struct{ *memory.Store }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}

func TestTraceID_StablePerSession(t *testing.T) {
	svc := NewService(memory.NewStore(), common.NewSilentLogger())
	ctx := context.Background()

	first, err := svc.TraceID(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := svc.TraceID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := svc.TraceID(ctx, "s2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestRotate_ReplacesID(t *testing.T) {
	svc := NewService(memory.NewStore(), common.NewSilentLogger())
	ctx := context.Background()

	before, err := svc.TraceID(ctx, "s1")
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, before, rotated)

	after, err := svc.TraceID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rotated, after)
}

func TestTraceID_EmptySessionUsesDefault(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, common.NewSilentLogger())

	id, err := svc.TraceID(context.Background(), "")
	require.NoError(t, err)

	stored, found, err := store.Get(context.Background(), "trace/"+common.DefaultUserID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, string(stored))
}

func TestTraceID_SessionEscaped(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, common.NewSilentLogger())

	_, err := svc.TraceID(context.Background(), "a/b")
	require.NoError(t, err)
	_, found, _ := store.Get(context.Background(), "trace/a%2Fb")
	assert.True(t, found)
}

func TestTraceID_StoreError(t *testing.T) {
	svc := NewService(failingStore{memory.NewStore()}, common.NewSilentLogger())
	_, err := svc.TraceID(context.Background(), "s1")
	assert.Error(t, err)
}

func TestTraceID_ConcurrentFirstUse(t *testing.T) {
	svc := NewService(memory.NewStore(), common.NewSilentLogger())
	ctx := context.Background()

	ids := make([]string, 20)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], _ = svc.TraceID(ctx, "s1")
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}
