package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
)

// Kind classifies a change event.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event is one committed change to a machine record, delivered to
// subscribers in commit order.
type Event struct {
	ID     uuid.UUID     `json:"id"`
	Kind   Kind          `json:"kind"`
	Record model.Machine `json:"record"`
}

// Completion is the domain event emitted when a reservation's time elapses
// and the machine is released. EndTime identifies the reservation cycle so
// consumers can deduplicate.
type Completion struct {
	MachineID   string    `json:"machine_id"`
	MachineName string    `json:"machine_name"`
	OwnerID     string    `json:"owner_id"`
	EndTime     time.Time `json:"end_time"`
}

// CompletionSink consumes completion events. Implementations must tolerate
// duplicate deliveries for the same (MachineID, EndTime) pair.
type CompletionSink interface {
	ReservationCompleted(c Completion)
}

// Broker fans machine change events out to any number of subscribers.
// Each subscriber gets its own unbounded mailbox so a slow consumer never
// stalls the store's write path and never loses events; per-subscriber
// delivery preserves publish order.
type Broker struct {
	mu   sync.Mutex
	subs map[int]*mailbox
	next int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*mailbox)}
}

// Publish hands the event to every current subscriber.
func (b *Broker) Publish(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	b.mu.Lock()
	for _, mb := range b.subs {
		mb.push(ev)
	}
	b.mu.Unlock()
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber is done; afterwards the channel is closed.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	mb := newMailbox()
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = mb
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			mb.close()
		}
		b.mu.Unlock()
	}
	return mb.out, cancel
}

// mailbox is an unbounded FIFO buffer between the broker and one subscriber.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	done   chan struct{}
	out    chan Event
}

func newMailbox() *mailbox {
	mb := &mailbox{out: make(chan Event), done: make(chan struct{})}
	mb.cond = sync.NewCond(&mb.mu)
	go mb.drain()
	return mb
}

func (mb *mailbox) push(ev Event) {
	mb.mu.Lock()
	if !mb.closed {
		mb.queue = append(mb.queue, ev)
		mb.cond.Signal()
	}
	mb.mu.Unlock()
}

func (mb *mailbox) close() {
	mb.mu.Lock()
	if !mb.closed {
		mb.closed = true
		close(mb.done)
		mb.cond.Signal()
	}
	mb.mu.Unlock()
}

func (mb *mailbox) drain() {
	for {
		mb.mu.Lock()
		for len(mb.queue) == 0 && !mb.closed {
			mb.cond.Wait()
		}
		if mb.closed {
			mb.mu.Unlock()
			close(mb.out)
			return
		}
		ev := mb.queue[0]
		mb.queue = mb.queue[1:]
		mb.mu.Unlock()

		select {
		case mb.out <- ev:
		case <-mb.done:
			close(mb.out)
			return
		}
	}
}
