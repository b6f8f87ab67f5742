package parallel

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidWorkerCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := New(func(int) int { return 0 }, func(int) {}, n)
		assert.ErrorIs(t, err, ErrInvalidWorkerCount)
	}
}

func TestOrdered_DelayedWorkerKeepsOrder(t *testing.T) {
	var got []string
	o, err := New(func(name string) string {
		if name == "F2" {
			time.Sleep(50 * time.Millisecond)
		}
		return name
	}, func(out string) {
		got = append(got, out)
	}, 3)
	require.NoError(t, err)

	for _, f := range []string{"F1", "F2", "F3", "F4"} {
		require.NoError(t, o.Submit(f))
	}
	o.Finish()
	o.Wait()

	assert.Equal(t, []string{"F1", "F2", "F3", "F4"}, got)
}

func TestOrdered_ManyInputs(t *testing.T) {
	for _, workers := range []int{1, 2, 8} {
		var got []int
		var concurrent, peak int32
		o, err := New(func(i int) int {
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			if i%7 == 0 {
				time.Sleep(time.Millisecond)
			}
			atomic.AddInt32(&concurrent, -1)
			return i * i
		}, func(out int) {
			got = append(got, out)
		}, workers)
		require.NoError(t, err)

		var want []int
		for i := 0; i < 200; i++ {
			require.NoError(t, o.Submit(i))
			want = append(want, i*i)
		}
		o.Wait()

		assert.Equal(t, want, got, "workers=%d", workers)
		assert.LessOrEqual(t, int(peak), workers)
	}
}

func TestOrdered_SubmitAfterFinish(t *testing.T) {
	o, err := New(func(i int) int { return i }, func(int) {}, 1)
	require.NoError(t, err)
	o.Finish()
	o.Finish()
	assert.ErrorIs(t, o.Submit(1), ErrFinished)
	o.Wait()
}

func TestOrdered_Empty(t *testing.T) {
	called := false
	o, err := New(func(i int) int { return i }, func(int) { called = true }, 4)
	require.NoError(t, err)
	o.Wait()
	assert.False(t, called)
}
