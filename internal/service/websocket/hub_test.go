package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

type fakeClient struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	closed   bool
}

func (c *fakeClient) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_PublishReachesClients(t *testing.T) {
	hub := NewHubService(logger.NewWithWriter(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	good := &fakeClient{}
	bad := &fakeClient{fail: true}
	hub.Register(good)
	hub.Register(bad)
	eventually(t, func() bool { return hub.GetClientCount() == 2 })

	hub.Publish(Event{Type: EventDetections, Camera: "gate", Detections: []model.Detection{{Label: "car", PlateText: "AB12CD"}}})

	eventually(t, func() bool { return len(good.received()) == 1 })
	eventually(t, func() bool { return hub.GetClientCount() == 1 })

	var event Event
	if err := json.Unmarshal(good.received()[0], &event); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if event.Type != EventDetections || event.Detections[0].PlateText != "AB12CD" || event.Timestamp.IsZero() {
		t.Errorf("event = %+v", event)
	}
	if !bad.isClosed() {
		t.Error("failing client should be closed")
	}
}

func TestHub_SendFrameEncodesImage(t *testing.T) {
	hub := NewHubService(logger.NewWithWriter(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := &fakeClient{}
	hub.Register(client)
	eventually(t, func() bool { return hub.GetClientCount() == 1 })
	hub.SendFrame([]byte{0xff, 0xd8}, "gate")

	eventually(t, func() bool { return len(client.received()) == 1 })
	var event Event
	json.Unmarshal(client.received()[0], &event)
	if event.Type != EventFrame || event.Image != "/9g=" {
		t.Errorf("event = %+v", event)
	}

	cancel()
	eventually(t, client.isClosed)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHubService(logger.NewWithWriter(io.Discard))
	for i := 0; i < broadcastBuffer; i++ {
		if !hub.Broadcast([]byte("x")) {
			t.Fatalf("message %d dropped before buffer filled", i)
		}
	}
	if hub.Broadcast([]byte("x")) {
		t.Error("full queue should drop")
	}
}
