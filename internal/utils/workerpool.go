package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type taskInput[T any] struct {
	index int
	value T
}

type taskOutput[T any] struct {
	index  int
	result TaskResult[T]
}

// TaskResult is the outcome of a single call of the pool function.
type TaskResult[T any] struct {
	Value   T
	Err     error
	Elapsed time.Duration
}

// WorkerPool runs f over a list of inputs with a fixed number of workers.
// A failed call does not stop the other workers, every input gets its own TaskResult.
type WorkerPool[I any, O any] struct {
	maxWorkers int
	inFlight   *semaphore.Weighted
	delay      time.Duration
	f          func(ctx context.Context, value I) (O, error)
	onProgress func(current int, total int)
}

func NewWorkerPool[I any, O any](f func(ctx context.Context, value I) (O, error), maxWorkers int) *WorkerPool[I, O] {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	return &WorkerPool[I, O]{
		maxWorkers: maxWorkers,
		f:          f,
	}
}

// LimitInFlight caps the number of calls running at the same time
// independently of the number of workers.
func (wp *WorkerPool[I, O]) LimitInFlight(n int) {
	if n > 0 && n < wp.maxWorkers {
		wp.inFlight = semaphore.NewWeighted(int64(n))
	}
}

// DelayEach makes every worker sleep d before each call.
func (wp *WorkerPool[I, O]) DelayEach(d time.Duration) {
	wp.delay = d
}

func (wp *WorkerPool[I, O]) OnProgress(f func(current int, total int)) {
	wp.onProgress = f
}

func (wp *WorkerPool[I, O]) call(ctx context.Context, value I) TaskResult[O] {
	if err := Sleep(ctx, wp.delay); err != nil {
		return TaskResult[O]{Err: err}
	}

	if wp.inFlight != nil {
		if err := wp.inFlight.Acquire(ctx, 1); err != nil {
			return TaskResult[O]{Err: err}
		}
		defer wp.inFlight.Release(1)
	}

	start := time.Now()
	result, err := wp.f(ctx, value)

	return TaskResult[O]{Value: result, Err: err, Elapsed: time.Since(start)}
}

func (wp *WorkerPool[I, O]) worker(ctx context.Context, inputCh <-chan taskInput[I], outputCh chan<- taskOutput[O]) {
	for {
		select {
		case input, ok := <-inputCh:
			if !ok {
				return
			}

			outputCh <- taskOutput[O]{
				index:  input.index,
				result: wp.call(ctx, input.value),
			}
		case <-ctx.Done():
			return
		}
	}
}

// Map returns results in input order. The error is non-nil only when ctx is done,
// in that case inputs that were never processed carry ctx.Err().
func (wp *WorkerPool[I, O]) Map(ctx context.Context, input []I) ([]TaskResult[O], error) {
	var wg sync.WaitGroup

	inputCh := make(chan taskInput[I])
	outputCh := make(chan taskOutput[O])

	workers := min(wp.maxWorkers, len(input))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wp.worker(ctx, inputCh, outputCh)
		}()
	}

	go func() {
		defer close(inputCh)
		for index, value := range input {
			select {
			case inputCh <- taskInput[I]{index: index, value: value}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outputCh)
	}()

	output := make([]TaskResult[O], len(input))
	done := make([]bool, len(input))
	completed := 0
	for taskOutput := range outputCh {
		output[taskOutput.index] = taskOutput.result
		done[taskOutput.index] = true
		completed++

		if wp.onProgress != nil {
			wp.onProgress(completed, len(input))
		}
	}

	if err := ctx.Err(); err != nil {
		for i := range output {
			if !done[i] {
				output[i].Err = err
			}
		}
		return output, err
	}

	return output, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
