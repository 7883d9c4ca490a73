package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	assert.Equal(t, 1, broker.SubscriberCount())

	broker.Publish(&Event{
		Type:     EventDiskRefused,
		Stage:    "prepare-disks",
		Metadata: map[string]string{"host": "esx-a", "disk": "naa.1"},
	})

	ev := receive(t, sub)
	assert.Equal(t, EventDiskRefused, ev.Type)
	assert.Equal(t, "prepare-disks", ev.Stage)
	assert.Equal(t, "naa.1", ev.Metadata["disk"])
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestBroker_PreservesOrder(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	types := []EventType{EventStageStarted, EventTaskIssued, EventStageCompleted}
	for _, typ := range types {
		broker.Publish(&Event{Type: typ})
	}

	for _, want := range types {
		assert.Equal(t, want, receive(t, sub).Type)
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub
	require.False(t, open)
}

func TestBroker_KeepsProvidedID(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Publish(&Event{ID: "fixed", Type: EventHostSkipped})
	assert.Equal(t, "fixed", receive(t, sub).ID)
}
