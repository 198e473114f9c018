package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"bitbucket.org/novatechnologies/liveview/domain"
)

func runLoop(t *testing.T, b *EventsInMemory) (cancel func()) {
	ctx, cancelFunc := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		assert.NoError(t, b.Run(ctx))
	}()

	return func() {
		cancelFunc()
		<-stopped
	}
}

func TestEventsInMemory_OrderAndIsolation(t *testing.T) {
	b := NewInMemory()

	var mu sync.Mutex
	var got []string
	record := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}
	done := make(chan struct{})

	b.Subscribe(domain.EvTypeGraph, func(e *domain.Event) error {
		record("graph:" + string(e.Data()))
		return nil
	})
	b.Subscribe(domain.EvTypeSubmissions, func(e *domain.Event) error {
		panic("boom")
	})
	b.Subscribe(domain.EvTypeFunding, func(e *domain.Event) error {
		record("funding")
		return errors.New("bad funding")
	})
	b.Subscribe(domain.EvTypeFunding, func(e *domain.Event) error {
		record("funding-2")
		return nil
	})

	b.Publish(domain.EvTypeGraph, domain.NewEvent(context.Background(), []byte("1")))
	b.Publish(domain.EvTypeSubmissions, domain.NewEvent(context.Background(), nil))
	b.Publish(domain.EvTypeFunding, domain.NewEvent(context.Background(), nil))
	b.Post(func() { record("posted") })
	b.Publish("unknown", domain.NewEvent(context.Background(), nil))
	b.Publish(domain.EvTypeGraph, domain.NewEvent(context.Background(), []byte("2")))
	b.Post(func() { close(done) })

	stop := runLoop(t, b)
	defer stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not drain the queue")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"graph:1", "funding", "funding-2", "posted", "graph:2"}, got)
}

func TestEventsInMemory_PublishAfterStop(t *testing.T) {
	b := NewInMemoryWithSize(1)
	stop := runLoop(t, b)
	stop()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 3; i++ {
			b.Publish(domain.EvTypeGraph, domain.NewEvent(context.Background(), nil))
		}
		b.Post(func() {})
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after the loop stopped")
	}
}

func TestEventsInMemory_SubscribeIgnoresEmpty(t *testing.T) {
	b := NewInMemory()
	b.Subscribe("", func(e *domain.Event) error { return nil })
	b.Subscribe(domain.EvTypeGraph, nil)
	assert.Empty(t, b.subscribers)
}
