package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/trafficguard/report-server/internal/models"
	"go.uber.org/zap"
)

func newLocalBroadcaster() *Broadcaster {
	return NewBroadcaster(nil, zap.NewNop().Sugar())
}

func testNotification() models.Notification {
	return models.Notification{
		Event:  "report-created",
		Report: &models.Report{ID: uuid.New(), Status: models.StatusReported},
	}
}

func receive(t *testing.T, ch <-chan models.Notification) models.Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.Notification{}
	}
}

func TestPublishReachesAllConnectedSubscribers(t *testing.T) {
	b := newLocalBroadcaster()

	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	n := testNotification()
	b.Publish(context.Background(), n)

	for _, ch := range []<-chan models.Notification{first, second} {
		got := receive(t, ch)
		if got.Event != "report-created" || got.Report.ID != n.Report.ID {
			t.Errorf("got %+v, want published event", got)
		}
	}
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	b := newLocalBroadcaster()

	b.Publish(context.Background(), testNotification())

	ch, cancel := b.Subscribe()
	defer cancel()

	select {
	case n := <-ch:
		t.Errorf("late subscriber received replayed event %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribedClientReceivesNothing(t *testing.T) {
	b := newLocalBroadcaster()

	ch, cancel := b.Subscribe()
	cancel()

	b.Publish(context.Background(), testNotification())

	// The channel is closed on unsubscribe; it must carry no events.
	if n, ok := <-ch; ok {
		t.Errorf("unsubscribed client received %+v", n)
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}
}

func TestCancelTwiceIsSafe(t *testing.T) {
	b := newLocalBroadcaster()
	_, cancel := b.Subscribe()
	cancel()
	cancel()
}

func TestConcurrentSubscribeUnsubscribeDuringPublish(t *testing.T) {
	b := newLocalBroadcaster()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Churning subscribers while publishing must not corrupt the
	// registry or panic on a closed channel send.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				ch, cancel := b.Subscribe()
				select {
				case <-ch:
				default:
				}
				cancel()
			}
		}()
	}

	for i := 0; i < 500; i++ {
		b.Publish(context.Background(), testNotification())
	}
	close(stop)
	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d after churn, want 0", b.SubscriberCount())
	}
}

func TestDistinctReportsProduceIndependentEvents(t *testing.T) {
	b := newLocalBroadcaster()

	ch, cancel := b.Subscribe()
	defer cancel()

	first := testNotification()
	second := testNotification()
	b.Publish(context.Background(), first)
	b.Publish(context.Background(), second)

	gotFirst := receive(t, ch)
	gotSecond := receive(t, ch)

	if gotFirst.Report.ID != first.Report.ID || gotSecond.Report.ID != second.Report.ID {
		t.Error("events not delivered in publish order with distinct payloads")
	}
	if gotFirst.Report.ID == gotSecond.Report.ID {
		t.Error("distinct reports shared an event payload")
	}
}
