package sse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursetrack/coursetrack/internal/id"
)

type countingObserver struct {
	mu        sync.Mutex
	delivered map[string]int
	clients   int
}

func (o *countingObserver) ObserveBroadcast(eventType string, delivered, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered[eventType] += delivered
}

func (o *countingObserver) ObserveClients(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clients = n
}

func startManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(nil, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.EventChan:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestConnect_AssignsClientID(t *testing.T) {
	m := NewManager(nil)

	c, err := m.Connect()
	require.NoError(t, err)
	assert.True(t, id.HasPrefix(c.ID, id.PrefixClient))
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	m.Disconnect(c.ID)
	assert.Zero(t, m.ClientCount())
}

func TestEmit_BroadcastsToAll(t *testing.T) {
	m := startManager(t)
	a, err := m.Connect()
	require.NoError(t, err)
	b, err := m.Connect()
	require.NoError(t, err)

	m.Emit(NewSettingsUpdatedEvent(true))

	for _, c := range []*Client{a, b} {
		ev := receive(t, c)
		assert.Equal(t, EventSettingsUpdated, ev.Type)
		assert.Equal(t, SettingsEventData{DarkMode: true}, ev.Data)
	}
}

func TestEmit_TypeFilter(t *testing.T) {
	m := startManager(t)
	c, err := m.Connect(EventPlaybackState)
	require.NoError(t, err)

	m.Emit(NewSettingsUpdatedEvent(true))
	m.Emit(NewPlaybackStateEvent(PlaybackEventData{State: "ready", VideoID: "v"}))

	ev := receive(t, c)
	assert.Equal(t, EventPlaybackState, ev.Type)
	assert.True(t, c.wants(EventHeartbeat))
}

func TestEmit_IgnoresForeignValues(t *testing.T) {
	m := startManager(t)
	c, err := m.Connect()
	require.NoError(t, err)

	m.Emit("not an event")
	m.Emit(NewPlaylistDeletedEvent("pl-1"))

	assert.Equal(t, EventPlaylistDeleted, receive(t, c).Type)
}

func TestHeartbeat(t *testing.T) {
	m := startManager(t, WithHeartbeatInterval(10*time.Millisecond))
	c, err := m.Connect(EventStatsUpdated)
	require.NoError(t, err)

	assert.Equal(t, EventHeartbeat, receive(t, c).Type)
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	obs := &countingObserver{delivered: map[string]int{}}
	m := startManager(t, WithDeliveryObserver(obs))
	slow, err := m.Connect()
	require.NoError(t, err)

	for range clientBuffer + 10 {
		m.Emit(NewSettingsUpdatedEvent(false))
	}

	assert.Eventually(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.delivered[string(EventSettingsUpdated)] == clientBuffer
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, slow.EventChan, clientBuffer)
	obs.mu.Lock()
	assert.Equal(t, 1, obs.clients)
	obs.mu.Unlock()
}

func TestShutdown_ClosesClientsAndDropsLateEvents(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	c, err := m.Connect()
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	_, open := <-c.Done
	assert.False(t, open)
	assert.Zero(t, m.ClientCount())

	m.Emit(NewSettingsUpdatedEvent(true))
}
