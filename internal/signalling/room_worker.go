package signalling

import "sync"

// roomWorker serializes all operations touching one room. A job runs to
// completion, including any RPC awaits inside it, before the next job
// starts. Two frames for the same peer can therefore never interleave
// their await windows, while different rooms proceed fully in parallel.
type roomWorker struct {
	jobs chan func()
	quit chan struct{}
	once sync.Once
}

func newRoomWorker() *roomWorker {
	w := &roomWorker{
		jobs: make(chan func(), 64),
		quit: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *roomWorker) loop() {
	for {
		select {
		case job := <-w.jobs:
			job()
		case <-w.quit:
			return
		}
	}
}

// DoWait submits a job and blocks until it has run. Calling DoWait from
// inside a job of the same worker would deadlock; handlers only ever
// submit from their connection goroutine.
func (w *roomWorker) DoWait(job func()) {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		job()
	}
	select {
	case w.jobs <- wrapped:
	case <-w.quit:
		return
	}
	select {
	case <-done:
	case <-w.quit:
	}
}

func (w *roomWorker) Stop() {
	w.once.Do(func() { close(w.quit) })
}
