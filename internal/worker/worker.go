// Package worker bounds how many video analyses run at once. A dispatcher
// feeds a pool of workers through per-worker channels; the pool grows up to a
// maximum under load and retires idle workers back down to a minimum.
package worker

import (
	"context"
)

// Task is one analysis request handed to the pool.
type Task struct {
	ctx    context.Context
	data   []byte
	name   string
	mime   string
	result chan Result
	stop   bool // pool-internal retirement signal
}

// Result carries the analysis text or the error back to the caller.
type Result struct {
	Analysis string
	Err      error
}

// Analyzer runs one analysis end to end. Satisfied by pipeline.Pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, originalName, mimeType string) (string, error)
}

type Worker struct {
	pool        *taskChannelPool
	taskChannel chan Task
}

func newWorker(pool *taskChannelPool) *Worker {
	return &Worker{
		pool:        pool,
		taskChannel: make(chan Task),
	}
}

// start announces the worker as idle, then loops until retired.
func (w *Worker) start() {
	go func() {
		w.pool.release(w.taskChannel)
		for task := range w.taskChannel {
			if task.stop {
				w.pool.retire(w.taskChannel)
				return
			}
			w.pool.run(task)
			w.pool.release(w.taskChannel)
		}
	}()
}
