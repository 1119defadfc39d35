package dispatcher

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nettlebridge/tgxp/internal/model"
)

type recordingHandler struct {
	mu      sync.Mutex
	address string
	calls   []string
}

func (h *recordingHandler) Address() string { return h.address }

func (h *recordingHandler) record(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, name)
}

func (h *recordingHandler) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *recordingHandler) SendMessage(ctx context.Context, msg *model.Message) error {
	h.record("send:" + msg.Content)
	return nil
}
func (h *recordingHandler) EditMessage(ctx context.Context, msg *model.Message) error {
	h.record("edit:" + msg.Content)
	return nil
}
func (h *recordingHandler) SendEvent(ctx context.Context, event *model.Event) error {
	h.record("event:" + event.Content)
	return nil
}
func (h *recordingHandler) SendAttachment(ctx context.Context, att *model.Attachment) error {
	h.record("attachment")
	return nil
}
func (h *recordingHandler) SendSticker(ctx context.Context, sticker *model.Sticker) error {
	h.record("sticker")
	return nil
}
func (h *recordingHandler) Unbridge(ctx context.Context) error {
	h.record("unbridge")
	return nil
}

func waitForCalls(t *testing.T, h *recordingHandler, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(h.Calls()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, got %v", n, h.Calls())
}

func TestDispatcherOrdersCallsPerDestination(t *testing.T) {
	d := New(zerolog.New(os.Stderr), nil)
	h := &recordingHandler{address: "dest"}
	d.Register("dest", h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	chat := model.Chat{Address: "dest"}
	require.NoError(t, d.Enqueue(ctx, &model.Message{
		Event:  model.Event{Forwardable: model.Forwardable{Chat: chat}, Content: "one"},
		Sender: model.Sender{Name: "a"},
	}))
	require.NoError(t, d.Enqueue(ctx, &model.Message{
		Event:  model.Event{Forwardable: model.Forwardable{Chat: chat}, Content: "two"},
		Sender: model.Sender{Name: "a"},
	}))

	waitForCalls(t, h, 2)
	require.Equal(t, []string{"send:one", "send:two"}, h.Calls())
}

func TestDispatcherDropsEventsWithNoHandler(t *testing.T) {
	d := New(zerolog.New(os.Stderr), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	chat := model.Chat{Address: "missing"}
	require.NoError(t, d.Enqueue(ctx, &model.Event{Forwardable: model.Forwardable{Chat: chat}, Content: "hi"}))
	// No panic, no handler invoked; nothing to assert beyond survival.
	time.Sleep(10 * time.Millisecond)
}

func TestEnqueueBlocksWhenQueueFull(t *testing.T) {
	d := New(zerolog.New(os.Stderr), nil)
	ctx := context.Background()

	// Fill the queue without a running consumer.
	for i := 0; i < queueCapacity; i++ {
		require.NoError(t, d.Enqueue(ctx, &model.Event{Forwardable: model.Forwardable{Chat: model.Chat{Address: "dest"}}}))
	}

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := d.Enqueue(blocked, &model.Event{Forwardable: model.Forwardable{Chat: model.Chat{Address: "dest"}}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherUnbridgeUnregistersAndCallsHook(t *testing.T) {
	var hookChat model.Chat
	var hookCalled bool
	d := New(zerolog.New(os.Stderr), func(ctx context.Context, chat model.Chat) string {
		hookCalled = true
		hookChat = chat
		return "peer"
	})
	h := &recordingHandler{address: "dest"}
	d.Register("dest", h)
	peer := &recordingHandler{address: "peer"}
	d.Register("peer", peer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	chat := model.Chat{Address: "dest"}
	require.NoError(t, d.Enqueue(ctx, &model.UnbridgeEvent{Forwardable: model.Forwardable{Chat: chat}}))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !hookCalled {
		time.Sleep(time.Millisecond)
	}
	require.True(t, hookCalled)
	require.Equal(t, chat, hookChat)
	_, ok := d.lookup("dest")
	require.False(t, ok)
	_, ok = d.lookup("peer")
	require.False(t, ok)
}
