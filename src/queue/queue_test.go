package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square-key-labs/wstransceiver/src/frames"
)

// TestPush_DropOldest covers P1: length never exceeds capacity, and the
// oldest frame is evicted first.
func TestPush_DropOldest(t *testing.T) {
	q := New(2)

	first := frames.NewAudioFrame([]byte("a"))
	second := frames.NewAudioFrame([]byte("b"))
	third := frames.NewAudioFrame([]byte("c"))

	q.Push(first)
	q.Push(second)
	assert.Equal(t, 2, q.Len())

	q.Push(third)
	assert.Equal(t, 2, q.Len(), "length must never exceed capacity")

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, second, got, "oldest frame should have been dropped")

	got, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, third, got)
}

func TestPop_Empty(t *testing.T) {
	q := New(4)
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestFlush(t *testing.T) {
	q := New(4)
	q.Push(frames.NewAudioFrame([]byte("a")))
	q.Push(frames.NewAudioFrame([]byte("b")))
	require.Equal(t, 2, q.Len())

	q.Flush()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestWaitNonEmpty_WakesOnPush(t *testing.T) {
	q := New(4)
	done := make(chan struct{})

	go func() {
		q.WaitNonEmpty(1 * time.Second)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(frames.NewAudioFrame([]byte("a")))

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitNonEmpty did not wake on push")
	}
}

func TestWaitNonEmpty_TimesOut(t *testing.T) {
	q := New(4)
	start := time.Now()
	q.WaitNonEmpty(20 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitAtLeast_AlreadySatisfied(t *testing.T) {
	q := New(4)
	q.Push(frames.NewAudioFrame([]byte("a")))
	q.Push(frames.NewAudioFrame([]byte("b")))

	ok := q.WaitAtLeast(2, 100*time.Millisecond)
	assert.True(t, ok)
}

func TestWaitAtLeast_TimesOut(t *testing.T) {
	q := New(4)
	ok := q.WaitAtLeast(3, 30*time.Millisecond)
	assert.False(t, ok)
}
