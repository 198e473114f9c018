package broker

import (
	"context"
	"sync"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

var (
	_ domain.EventsBroker = new(EventsInMemory)
	_ domain.Dispatcher   = new(EventsInMemory)
)

const defaultQueueSize = 256

type job struct {
	tp EventType
	ev *domain.Event
	fn func()
}

type EventType = domain.EventType

// EventsInMemory is in-memory manager which stores subscriptions and runs
// every handler and posted continuation on the single goroutine of Run, one
// at a time, in arrival order.
// Subscribe is thread unsafe and must be called before Run.
type EventsInMemory struct {
	log         logger.Logger
	subscribers map[domain.EventType][]domain.EventHandler
	queue       chan job
	done        chan struct{}
	stopOnce    sync.Once
}

func NewInMemory() *EventsInMemory {
	return NewInMemoryWithSize(defaultQueueSize)
}

func NewInMemoryWithSize(size int) *EventsInMemory {
	return &EventsInMemory{
		log:         logger.DefaultLogger,
		subscribers: make(map[domain.EventType][]domain.EventHandler),
		queue:       make(chan job, size),
		done:        make(chan struct{}),
	}
}

func (ps *EventsInMemory) WithLogger(lg logger.Logger) *EventsInMemory {
	ps.log = lg
	return ps
}

func (ps *EventsInMemory) Subscribe(
	tp domain.EventType,
	h domain.EventHandler,
) {
	if tp == "" || h == nil {
		return
	}

	ps.subscribers[tp] = append(ps.subscribers[tp], h)
}

// Publish enqueues the event. It blocks while the queue is full and drops the
// event once the loop has stopped.
func (ps *EventsInMemory) Publish(tp domain.EventType, ev *domain.Event) {
	if ev == nil {
		return
	}
	ps.enqueue(job{tp: tp, ev: ev})
}

// Post enqueues fn to run between handlers.
func (ps *EventsInMemory) Post(fn func()) {
	if fn == nil {
		return
	}
	ps.enqueue(job{fn: fn})
}

func (ps *EventsInMemory) enqueue(j job) {
	select {
	case <-ps.done:
		ps.log.WithField("type", j.tp).Debugf("Event loop stopped, dropping job")
	case ps.queue <- j:
	}
}

// Run processes queued jobs until ctx is done.
func (ps *EventsInMemory) Run(ctx context.Context) error {
	defer ps.stopOnce.Do(func() { close(ps.done) })

	ps.log.Infof("Event loop started")
	for {
		select {
		case <-ctx.Done():
			ps.log.Infof("Event loop stopped")
			return nil
		case j := <-ps.queue:
			if j.fn != nil {
				ps.runPosted(j.fn)
				continue
			}
			ps.dispatch(j.tp, j.ev)
		}
	}
}

func (ps *EventsInMemory) dispatch(tp domain.EventType, ev *domain.Event) {
	handlers := ps.subscribers[tp]
	if len(handlers) == 0 {
		ps.log.WithField("type", tp).Debugf("No subscribers for event")
		return
	}

	for _, handler := range handlers {
		ps.runHandler(tp, handler, ev)
	}
}

func (ps *EventsInMemory) runHandler(
	tp domain.EventType,
	handler domain.EventHandler,
	ev *domain.Event,
) {
	defer func() {
		if r := recover(); r != nil {
			ps.log.WithField("type", tp).Errorf(
				"Panic while executing handler for %s tp: %+v", tp, r,
			)
		}
	}()

	if err := handler(ev); err != nil {
		ps.log.
			WithField("type", tp).
			WithField("source", ev.GetMeta(domain.MetaSource)).
			WithField("id", ev.GetMeta(domain.MetaEventID)).
			Errorf("Error while executing handler for %s tp: %v", tp, err)
	}
}

func (ps *EventsInMemory) runPosted(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			ps.log.Errorf("Panic while executing posted func: %+v", r)
		}
	}()

	fn()
}
