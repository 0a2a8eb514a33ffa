package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(8)
	received := make(chan interface{}, 1)
	b.Subscribe("topic-a", func(payload interface{}) {
		received <- payload
	})

	b.Publish("topic-a", "hello")

	select {
	case got := <-received:
		if got != "hello" {
			t.Errorf("expected payload 'hello', got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestPublishOrderPreservedPerSubscriber(t *testing.T) {
	b := New(32)
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	b.Subscribe("ordered", func(payload interface{}) {
		mu.Lock()
		got = append(got, payload.(int))
		if len(got) == 10 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		b.Publish("ordered", i)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all events")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("out-of-order delivery: got %v", got)
		}
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := New(1)
	block := make(chan struct{})
	okReceived := make(chan struct{}, 1)

	b.Subscribe("topic", func(payload interface{}) {
		<-block // never unblocks during this test
	})
	b.Subscribe("topic", func(payload interface{}) {
		okReceived <- struct{}{}
	})

	b.Publish("topic", "x")

	select {
	case <-okReceived:
	case <-time.After(time.Second):
		t.Fatal("second subscriber never received event while first was blocked")
	}
	close(block)
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	b := New(8)
	count := 0
	var mu sync.Mutex

	unsub := b.Subscribe("topic", func(payload interface{}) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	b.Publish("topic", 1)
	time.Sleep(50 * time.Millisecond)
	unsub()
	time.Sleep(50 * time.Millisecond)

	b.Publish("topic", 2)
	b.Publish("topic", 3)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count > 2 {
		t.Errorf("expected at most one trailing event after unsubscribe, got count=%d", count)
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := New(8)
	b.Publish("nobody-listening", "x")
}

func TestMultipleTopicsIsolated(t *testing.T) {
	b := New(8)
	aCh := make(chan interface{}, 1)
	bCh := make(chan interface{}, 1)
	b.Subscribe("a", func(p interface{}) { aCh <- p })
	b.Subscribe("b", func(p interface{}) { bCh <- p })

	b.Publish("a", "for-a")

	select {
	case got := <-aCh:
		if got != "for-a" {
			t.Errorf("unexpected payload on a: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("topic a did not receive its event")
	}

	select {
	case got := <-bCh:
		t.Fatalf("topic b should not have received anything, got %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}
