// Package parallel runs work on a fixed pool of goroutines while delivering
// results in submission order.
package parallel

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidWorkerCount is returned for a pool size below one.
	ErrInvalidWorkerCount = errors.New("parallel: worker count must be at least 1")
	// ErrFinished is returned by Submit after Finish.
	ErrFinished = errors.New("parallel: submit after finish")
)

type job[In, Out any] struct {
	in   In
	slot chan Out
}

// Ordered processes inputs with up to n concurrent workers. The consumer
// runs on a single goroutine and sees outputs strictly in the order the
// inputs were submitted, regardless of completion order.
//
// Submit, Finish and Wait must be called from one goroutine.
type Ordered[In, Out any] struct {
	worker  func(In) Out
	consume func(Out)

	jobs    chan job[In, Out]
	pending chan chan Out

	workers  sync.WaitGroup
	consumer sync.WaitGroup
	finished bool
}

// New starts n workers and the consumer goroutine.
func New[In, Out any](worker func(In) Out, consume func(Out), n int) (*Ordered[In, Out], error) {
	if n < 1 {
		return nil, ErrInvalidWorkerCount
	}
	o := &Ordered[In, Out]{
		worker:  worker,
		consume: consume,
		jobs:    make(chan job[In, Out], n),
		// Bounds the results held back waiting for an earlier one.
		pending: make(chan chan Out, 2*n),
	}

	o.workers.Add(n)
	for i := 0; i < n; i++ {
		go o.work()
	}
	o.consumer.Add(1)
	go o.deliver()
	return o, nil
}

func (o *Ordered[In, Out]) work() {
	defer o.workers.Done()
	for j := range o.jobs {
		j.slot <- o.worker(j.in)
	}
}

func (o *Ordered[In, Out]) deliver() {
	defer o.consumer.Done()
	for slot := range o.pending {
		o.consume(<-slot)
	}
}

// Submit enqueues in. It blocks while the queue is full.
func (o *Ordered[In, Out]) Submit(in In) error {
	if o.finished {
		return ErrFinished
	}
	slot := make(chan Out, 1)
	o.pending <- slot
	o.jobs <- job[In, Out]{in: in, slot: slot}
	return nil
}

// Finish signals that no more inputs follow. It is idempotent.
func (o *Ordered[In, Out]) Finish() {
	if o.finished {
		return
	}
	o.finished = true
	close(o.jobs)
	close(o.pending)
}

// Wait blocks until every submitted input has been processed and its
// output consumed. It calls Finish if needed.
func (o *Ordered[In, Out]) Wait() {
	o.Finish()
	o.workers.Wait()
	o.consumer.Wait()
}
