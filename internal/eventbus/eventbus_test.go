package eventbus

import (
	"context"
	"testing"
)

type testEvent struct {
	N int
}

type otherEvent struct {
	S string
}

func TestPublishReachesTypedSubscribers(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got []int
	unsub := Subscribe(func(_ context.Context, e testEvent) {
		got = append(got, e.N)
	})
	defer unsub()

	Publish(context.Background(), testEvent{N: 1})
	Publish(context.Background(), otherEvent{S: "ignored"})
	Publish(context.Background(), testEvent{N: 2})

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got = %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	Use(New())
	defer Use(nil)

	calls := 0
	unsub := Subscribe(func(context.Context, testEvent) { calls++ })
	Publish(context.Background(), testEvent{})
	unsub()
	Publish(context.Background(), testEvent{})

	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestUnsubscribeRemovesOnlyItsHandler(t *testing.T) {
	Use(New())
	defer Use(nil)

	var first, second, third int
	u1 := Subscribe(func(context.Context, testEvent) { first++ })
	u2 := Subscribe(func(context.Context, testEvent) { second++ })
	u3 := Subscribe(func(context.Context, testEvent) { third++ })
	defer u1()
	defer u3()

	u2()
	Publish(context.Background(), testEvent{})

	if first != 1 || second != 0 || third != 1 {
		t.Fatalf("first=%d second=%d third=%d", first, second, third)
	}
}

func TestNoBusInstalled(t *testing.T) {
	Use(nil)

	unsub := Subscribe(func(context.Context, testEvent) {
		t.Fatal("handler registered without a bus")
	})
	unsub()
	Publish(context.Background(), testEvent{}) // must not panic
}
