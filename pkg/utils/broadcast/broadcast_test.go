package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/participant-core-go/log"
)

func TestBroadcastToAllSubscribers(t *testing.T) {
	src := make(chan int)
	b := NewBroadcastServer("test", src, WithLogger[int](log.Nop()))
	defer b.Close()

	s1 := b.Subscribe()
	s2 := b.Subscribe()
	require.NotNil(t, s1)
	require.NotNil(t, s2)

	src <- 42
	for _, s := range []<-chan int{s1, s2} {
		select {
		case v := <-s:
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("no message received")
		}
	}
}

func TestCancelSubscriptionClosesChannel(t *testing.T) {
	src := make(chan string)
	b := NewBroadcastServer("test", src, WithLogger[string](log.Nop()))
	defer b.Close()

	s := b.Subscribe()
	b.CancelSubscription(s)
	_, ok := <-s
	assert.False(t, ok)
}

func TestCloseClosesSubscribers(t *testing.T) {
	src := make(chan string)
	b := NewBroadcastServer("test", src, WithLogger[string](log.Nop()))
	s := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-s:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.Nil(t, b.Subscribe())
}
