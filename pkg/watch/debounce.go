package watch

import (
	"context"
	"sort"
	"time"
)

// Event is a batch of changed paths, sorted and without duplicates.
type Event struct {
	Paths     []string
	Timestamp time.Time
}

// Debounce batches the paths received on in. A batch is emitted once no
// path arrived for quiet, or maxWait after its first path, whichever comes
// first. A zero maxWait disables the upper bound. The returned channel is
// closed after in is closed (flushing the pending batch) or ctx is done.
func Debounce(ctx context.Context, in <-chan string, quiet, maxWait time.Duration) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		pending := make(map[string]struct{})
		var quietC, maxC <-chan time.Time
		var quietT, maxT *time.Timer

		stop := func() {
			if quietT != nil {
				quietT.Stop()
			}
			if maxT != nil {
				maxT.Stop()
			}
			quietC, maxC = nil, nil
		}
		flush := func() bool {
			stop()
			if len(pending) == 0 {
				return true
			}
			ev := Event{Paths: make([]string, 0, len(pending)), Timestamp: time.Now()}
			for p := range pending {
				ev.Paths = append(ev.Paths, p)
			}
			sort.Strings(ev.Paths)
			pending = make(map[string]struct{})
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case p, ok := <-in:
				if !ok {
					flush()
					return
				}
				if len(pending) == 0 && maxWait > 0 {
					maxT = time.NewTimer(maxWait)
					maxC = maxT.C
				}
				pending[p] = struct{}{}
				if quietT != nil {
					quietT.Stop()
				}
				quietT = time.NewTimer(quiet)
				quietC = quietT.C
			case <-quietC:
				if !flush() {
					return
				}
			case <-maxC:
				if !flush() {
					return
				}
			}
		}
	}()
	return out
}
