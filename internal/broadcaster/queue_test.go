package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	for i := 0; i < 1000; i++ {
		n, ok := q.push([]byte{byte(i)})
		require.True(t, ok)
		require.Equal(t, i+1, n)
	}
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		b, ok := q.pop(ctx)
		require.True(t, ok)
		require.Equal(t, byte(i), b[0])
	}
	assert.Zero(t, q.len())
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := newQueue()
	got := make(chan []byte, 1)
	go func() {
		b, _ := q.pop(context.Background())
		got <- b
	}()
	time.Sleep(10 * time.Millisecond)
	q.push([]byte("x"))
	select {
	case b := <-got:
		assert.Equal(t, []byte("x"), b)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake")
	}
}

func TestQueueCloseAndCancel(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.pop(ctx)
	assert.False(t, ok)

	q.close()
	_, ok = q.push([]byte("late"))
	assert.False(t, ok)
	_, ok = q.pop(context.Background())
	assert.False(t, ok)
}

func TestQueueCompactsWithoutDraining(t *testing.T) {
	q := newQueue()
	ctx := context.Background()
	_, _ = q.push([]byte{0})
	_, _ = q.push([]byte{1})
	for i := 2; i < 10000; i++ {
		_, ok := q.push([]byte{byte(i)})
		require.True(t, ok)
		b, ok := q.pop(ctx)
		require.True(t, ok)
		require.Equal(t, byte(i-2), b[0])
	}
	assert.Equal(t, 2, q.len())

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.LessOrEqual(t, cap(q.items), 4*compactMin, "backing array stays bounded")
}
