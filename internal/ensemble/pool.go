package ensemble

// pool is a fixed set of long-lived workers. The coordinator submits one task
// per member per example and barriers on its own WaitGroup, so the pool needs
// no result plumbing.
type pool struct {
	tasks chan func()
	done  chan struct{}
}

func newPool(workers int) *pool {
	p := &pool{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *pool) run() {
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			return
		}
	}
}

// submit hands a task to a worker. It reports false once the pool is stopped
// so a caller barriering on its own WaitGroup can release the slot itself.
func (p *pool) submit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	case <-p.done:
		return false
	}
}

func (p *pool) stop() {
	close(p.done)
}
