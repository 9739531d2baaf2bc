package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned when the analysis queue cannot take another task.
var ErrQueueFull = errors.New("analysis queue is full")

// Config sizes the pool and its queue. Zero values fall back to defaults.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type Dispatcher struct {
	pool      *taskChannelPool
	taskQueue chan Task
	analyzer  Analyzer
}

func NewDispatcher(cfg Config, analyzer Analyzer) *Dispatcher {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}

	d := &Dispatcher{
		taskQueue: make(chan Task, cfg.QueueSize),
		analyzer:  analyzer,
	}
	d.pool = newTaskChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, d.runTask)

	// Warm up the minimum set so the first requests skip the spawn path.
	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for task := range d.taskQueue {
		ch := d.pool.acquire()
		ch <- task
	}
}

func (d *Dispatcher) runTask(task Task) {
	analysis, err := d.analyzer.Analyze(task.ctx, task.data, task.name, task.mime)
	task.result <- Result{Analysis: analysis, Err: err}
}

// Analyze enqueues one analysis and blocks until it finishes or the caller's
// context ends. A full queue fails fast with ErrQueueFull instead of stacking
// requests behind slow uploads.
func (d *Dispatcher) Analyze(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	task := Task{
		ctx:    ctx,
		data:   data,
		name:   originalName,
		mime:   mimeType,
		result: make(chan Result, 1),
	}
	select {
	case d.taskQueue <- task:
	default:
		log.Warn().Int("queue_cap", cap(d.taskQueue)).Msg("analysis queue full, rejecting request")
		return "", ErrQueueFull
	}

	select {
	case res := <-task.result:
		return res.Analysis, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
