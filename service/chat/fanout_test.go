package chat

import (
	"testing"
	"time"
)

func TestBroadcastDelivers(t *testing.T) {
	f := NewFanout(1, 8)
	defer f.Close()
	c := newClient(4)

	f.Broadcast([]*Client{c}, []byte("ping"))

	select {
	case got := <-c.send:
		if string(got) != "ping" {
			t.Fatalf("payload mismatch: %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker never delivered")
	}
}

func TestBroadcastFullQueueDoesNotBlock(t *testing.T) {
	// No workers draining: the queue fills and stays full.
	f := &Fanout{jobs: make(chan fanoutJob, 1)}
	c := newClient(1)

	done := make(chan struct{})
	go func() {
		f.Broadcast([]*Client{c}, []byte("one"))
		f.Broadcast([]*Client{c}, []byte("two"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a full queue")
	}
	if len(f.jobs) != 1 {
		t.Fatalf("want the overflow job dropped, queue holds %d", len(f.jobs))
	}
}
