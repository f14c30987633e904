package chat

import (
	"NioBoard/logger"
	"NioBoard/tools/safe"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout is a small worker pool pushing one payload to many client send
// queues. Enqueue onto a full client drops the payload for that client
// only; the posting request is never blocked by a slow reader.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 2
	}
	if queue <= 0 {
		queue = 256
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.Go("fanout-worker", func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					c.enqueue(job.payload)
				}
			}
		})
	}
	return f
}

// Broadcast enqueues one delivery job. A full queue drops the whole job
// rather than stalling the caller; recipients recover on their next
// poll.
func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	default:
		logger.Warnf("[fanout] queue full, dropping broadcast to %d clients", len(conns))
	}
}

func (f *Fanout) Close() { close(f.jobs) }
