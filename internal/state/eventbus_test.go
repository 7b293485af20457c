package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	testLen := 1000
	ready := make(chan struct{}, testLen)
	wg := sync.WaitGroup{}
	count := atomic.Uint64{}
	for i := 0; i < testLen; i++ {
		ch := make(chan interface{}, 1)
		bus.Subscribe(SendBroadcasted, ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready <- struct{}{}
			if ev, ok := (<-ch).(SendEvent); ok && ev.Txid == "abc" {
				count.Add(1)
			}
		}()
	}
	for i := 0; i < testLen; i++ {
		<-ready
	}
	bus.Publish(SendBroadcasted, SendEvent{Txid: "abc"})
	wg.Wait()
	assert.Equal(t, uint64(testLen), count.Load())
	assert.Equal(t, testLen, bus.subscriberCount(SendBroadcasted))
}

func TestEventBusDropsFullSubscribers(t *testing.T) {
	bus := NewEventBus()
	full := make(chan interface{})
	open := make(chan interface{}, 1)
	bus.Subscribe(SendFailed, full)
	bus.Subscribe(SendFailed, open)

	bus.Publish(SendFailed, SendEvent{Error: "boom"})
	assert.Equal(t, 1, bus.subscriberCount(SendFailed))
	assert.Equal(t, "boom", (<-open).(SendEvent).Error)

	bus.Publish(SendRecorded, "nobody listens")
	bus.Unsubscribe(SendFailed, open)
	assert.Equal(t, 0, bus.subscriberCount(SendFailed))
	assert.Equal(t, "SendFailed", SendFailed.String())
}
