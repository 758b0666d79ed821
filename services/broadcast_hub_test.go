package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id string, userID uint, buffer int) *Client {
	return &Client{
		id:     id,
		userID: userID,
		send:   make(chan []byte, buffer),
	}
}

func registerClient(t *testing.T, h *Hub, c *Client) {
	t.Helper()

	before := h.ClientCount()
	h.register <- c
	require.Eventually(t, func() bool {
		return h.ClientCount() == before+1
	}, time.Second, 5*time.Millisecond)
}

func TestSendToUser_TargetsOnlyThatUsersClients(t *testing.T) {
	h := NewHub()

	u1a := newTestClient("u1a", 1, 8)
	u1b := newTestClient("u1b", 1, 8)
	u2 := newTestClient("u2", 2, 8)
	registerClient(t, h, u1a)
	registerClient(t, h, u1b)
	registerClient(t, h, u2)

	event := NewPriceUpdateEvent(map[string]float64{"AAPL": 8300.00}, "2026-08-29T10:00:00Z")
	sent := h.SendToUser(1, event)
	assert.Equal(t, 2, sent)

	for _, c := range []*Client{u1a, u1b} {
		select {
		case raw := <-c.send:
			var got PriceUpdateEvent
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, "priceUpdate", got.Type)
			assert.Equal(t, map[string]float64{"AAPL": 8300.00}, got.Data)
			assert.Equal(t, "2026-08-29T10:00:00Z", got.Timestamp)
		default:
			t.Fatalf("client %s received nothing", c.id)
		}
	}

	assert.Empty(t, u2.send, "other users must not receive the event")
}

func TestSendToUser_NoClients(t *testing.T) {
	h := NewHub()

	sent := h.SendToUser(42, NewPriceUpdateEvent(map[string]float64{"TSLA": 1.23}, "now"))
	assert.Zero(t, sent)
}

func TestSendToUser_FullBufferClientDropped(t *testing.T) {
	h := NewHub()

	slow := newTestClient("slow", 1, 1)
	fast := newTestClient("fast", 1, 8)
	registerClient(t, h, slow)
	registerClient(t, h, fast)

	// Fill the slow client's buffer so the next delivery cannot be queued
	slow.send <- []byte("backlog")

	sent := h.SendToUser(1, NewPriceUpdateEvent(map[string]float64{"AAPL": 1.0}, "now"))

	assert.Equal(t, 1, sent, "only the healthy client is reached")
	assert.Equal(t, 1, h.ClientCount(), "the blocked client is removed")

	select {
	case <-fast.send:
	default:
		t.Fatal("healthy client should still receive the event")
	}
}

func TestUnregister_RemovesUserGroup(t *testing.T) {
	h := NewHub()

	c := newTestClient("c", 7, 8)
	registerClient(t, h, c)
	require.Equal(t, 1, h.UserCount())

	h.unregister <- c
	require.Eventually(t, func() bool {
		return h.ClientCount() == 0 && h.UserCount() == 0
	}, time.Second, 5*time.Millisecond)
}
