package chathub

import "context"

type storeJob func(ctx context.Context)

// storePool runs store round-trips on a fixed set of workers. submit never blocks; a
// full queue refuses the job so one flooding connection cannot pile up DB calls.
type storePool struct {
	workers int
	jobs    chan storeJob
}

func newStorePool(workers, queue int) *storePool {
	return &storePool{workers: workers, jobs: make(chan storeJob, queue)}
}

func (p *storePool) start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.jobs:
					job(ctx)
				}
			}
		}()
	}
}

func (p *storePool) submit(job storeJob) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}
