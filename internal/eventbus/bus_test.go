package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()

	ch1, unsub1 := b.Subscribe(4)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(4)
	defer unsub2()

	b.Publish(Event{Type: TypeScheduled, PostID: "post-1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, TypeScheduled, e.Type)
			assert.Equal(t, "post-1", e.PostID)
			assert.False(t, e.Time.IsZero(), "time is stamped on publish")
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := New()

	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypePublished})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()

	ch, unsub := b.Subscribe(1)
	unsub()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic
	b.Publish(Event{Type: TypeFailed})
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()

	_, unsub := b.Subscribe(1)
	unsub()
	unsub()
}

func TestSubscribeDefaultsBuffer(t *testing.T) {
	b := New()

	ch, unsub := b.Subscribe(0)
	defer unsub()

	b.Publish(Event{Type: TypeUnscheduled})

	select {
	case e := <-ch:
		require.Equal(t, TypeUnscheduled, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
