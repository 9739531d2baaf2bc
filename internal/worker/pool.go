package worker

import (
	"sync"
	"time"
)

type workerMeta struct {
	ch        chan Task
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

type taskChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Task]*workerMeta
	min      int
	max      int
	running  int
	expiry   time.Duration
	run      func(Task)
}

const defaultWorkerIdle = 30 * time.Second

func newTaskChannelPool(minWorkers, maxWorkers int, idle time.Duration, run func(Task)) *taskChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &taskChannelPool{
		metadata: make(map[chan Task]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		run:      run,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// spawnWorker adds a new worker; it registers itself as idle on start.
func (p *taskChannelPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max {
		p.mu.Unlock()
		return
	}
	worker := newWorker(p)
	meta := &workerMeta{
		ch: worker.taskChannel,
	}
	p.metadata[worker.taskChannel] = meta
	p.running++
	p.mu.Unlock()
	worker.start()
}

// acquire gets an idle worker, or spawns a new one
func (p *taskChannelPool) acquire() chan Task {
	for {
		p.mu.Lock()
		if meta := p.popIdleLocked(); meta != nil {
			p.mu.Unlock()
			return meta.ch
		}
		if p.running < p.max {
			p.mu.Unlock()
			p.spawnWorker()
			continue
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// release adds an idle worker back into the pool
func (p *taskChannelPool) release(ch chan Task) {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
}

// retire deletes a worker
func (p *taskChannelPool) retire(ch chan Task) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// popIdleLocked checks if pool has an idle worker, then returns it
func (p *taskChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *taskChannelPool) runningWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// purgeStaleWorkers calls shutdownExpired when expiry time comes
func (p *taskChannelPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		<-ticker.C
		p.shutdownExpired()
	}
}

// shutdownExpired retires all the expired workers above the minimum
func (p *taskChannelPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0] // keep the original array
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- Task{stop: true}
	}
}
