package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var order []string

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	bus.Subscribe(EventStepStarted, func(evt Event) {
		defer wg.Done()
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	}, nil)
	bus.Subscribe(EventStepStarted, func(evt Event) {
		defer wg.Done()
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	}, nil)

	bus.Publish(Event{Name: EventStepStarted, ExecutionID: "exec-1", At: time.Now()})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribers")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEventBusPublishIgnoresUnrelatedEventNames(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Subscribe(EventStepFailed, func(evt Event) { called = true }, nil)

	bus.Publish(Event{Name: EventStepCompleted})
	time.Sleep(20 * time.Millisecond)

	assert.False(t, called)
}

func TestEventBusHandlerPanicIsolatedPerSubscriber(t *testing.T) {
	bus := NewEventBus()
	var wg sync.WaitGroup
	wg.Add(2)

	var failErr error
	var mu sync.Mutex

	bus.Subscribe(EventWorkflowFailed, func(evt Event) {
		defer wg.Done()
		panic("boom")
	}, func(err error) {
		mu.Lock()
		failErr = err
		mu.Unlock()
	})

	survived := false
	bus.Subscribe(EventWorkflowFailed, func(evt Event) {
		defer wg.Done()
		survived = true
	}, nil)

	bus.Publish(Event{Name: EventWorkflowFailed})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribers")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, failErr)
	assert.Contains(t, failErr.Error(), "boom")
	assert.True(t, survived)
}

func TestEventBusPublishDropsOnFullMailboxWithoutBlocking(t *testing.T) {
	bus := NewEventBus()
	block := make(chan struct{})
	started := make(chan struct{}, 1)

	bus.Subscribe(EventStepStarted, func(evt Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
	}, nil)

	for i := 0; i < mailboxCapacity+10; i++ {
		bus.Publish(Event{Name: EventStepStarted})
	}

	close(block)
}

func TestEventBusCloseStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Subscribe(EventEngineStopped, func(evt Event) { called = true }, nil)

	bus.Close()
	bus.Publish(Event{Name: EventEngineStopped})
	time.Sleep(20 * time.Millisecond)

	assert.False(t, called)
}
