package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed early")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestDebounce_BatchesAndDeduplicates(t *testing.T) {
	in := make(chan string)
	out := Debounce(context.Background(), in, 50*time.Millisecond, 0)

	in <- "b.c"
	in <- "a.c"
	in <- "b.c"
	ev := receive(t, out)
	assert.Equal(t, []string{"a.c", "b.c"}, ev.Paths)
	assert.False(t, ev.Timestamp.IsZero())

	in <- "c.c"
	ev = receive(t, out)
	assert.Equal(t, []string{"c.c"}, ev.Paths)

	close(in)
	_, ok := <-out
	assert.False(t, ok)
}

func TestDebounce_MaxWait(t *testing.T) {
	in := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := Debounce(ctx, in, time.Hour, 100*time.Millisecond)

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case in <- "busy.c":
				case <-stop:
					return
				}
			}
		}
	}()

	ev := receive(t, out)
	close(stop)
	assert.Equal(t, []string{"busy.c"}, ev.Paths)
}

func TestDebounce_FlushOnClose(t *testing.T) {
	in := make(chan string, 2)
	in <- "x.c"
	close(in)

	out := Debounce(context.Background(), in, time.Hour, 0)
	ev := receive(t, out)
	assert.Equal(t, []string{"x.c"}, ev.Paths)
	_, ok := <-out
	assert.False(t, ok)
}

func TestDebounce_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := Debounce(ctx, make(chan string), time.Millisecond, 0)
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("debouncer did not stop")
	}
}
