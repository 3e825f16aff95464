package syncsim

import (
	"context"
	"sync"
)

type message interface {
	message()
}

// delivery carries one record of a party.
type delivery struct {
	party  byte
	record Record
}

// offer carries the full record state of the sender.
type offer struct {
	from    string
	records map[byte][]Record
}

func (delivery) message() {}
func (offer) message()    {}

// mailbox is an unbounded queue. Senders never block; the owner is woken
// through a single slot channel that also carries command notifications.
type mailbox struct {
	mu    sync.Mutex
	queue []message
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(msg message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	m.poke()
}

func (m *mailbox) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// pending counts work that was handed to an agent and not finished yet. Work
// spawned while handling a task is added before the task is marked done, so
// the count reaches zero only when the whole simulation is quiet.
type pending struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func newPending() *pending {
	return &pending{idle: make(chan struct{})}
}

func (p *pending) add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n += n
	if p.n < 0 {
		panic("syncsim: negative pending count")
	}
	if p.n == 0 {
		close(p.idle)
		p.idle = make(chan struct{})
	}
}

func (p *pending) done() { p.add(-1) }

func (p *pending) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func (p *pending) wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.n == 0 {
			p.mu.Unlock()
			return nil
		}
		idle := p.idle
		p.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
