package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/httpretry"
)

func TestTelegramClient_SendPostsExpectedPayload(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken123/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := &TelegramClient{token: "token123", chatID: "chat1", retry: httpretry.New(httpretry.WithRetryDelay(time.Millisecond))}
	c.sendEndpoint = srv.URL + "/bottoken123/sendMessage"

	err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "chat1", got.ChatID)
	assert.Equal(t, "hello", got.Text)
}

func TestTelegramClient_SendMissingTokenErrors(t *testing.T) {
	c := NewTelegramClient("", "chat1")
	err := c.Send(context.Background(), "hello")
	require.Error(t, err)
}

func TestSignalMessage_IncludesFiringMetrics(t *testing.T) {
	s := &domain.EmittedSignal{
		Mint: "mintX", Symbol: "XYZ", SignalTS: 100,
		EMACross: true, VolSpike: 3.5, RSI: 28, Reasons: "volume_spike,ema_bull",
	}
	msg := SignalMessage(s)
	assert.Contains(t, msg, "mintX")
	assert.Contains(t, msg, "XYZ")
	assert.Contains(t, msg, "volume_spike,ema_bull")
}

type fakeSink struct {
	mu    sync.Mutex
	sent  []string
	failN int
}

func (f *fakeSink) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, text)
	return nil
}

type fakeSignalStore struct {
	mu       sync.Mutex
	pending  []*domain.EmittedSignal
	notified map[int64]bool
}

func (f *fakeSignalStore) UnnotifiedSignals(ctx context.Context) ([]*domain.EmittedSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.EmittedSignal
	for _, s := range f.pending {
		if !f.notified[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSignalStore) MarkNotified(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notified == nil {
		f.notified = make(map[int64]bool)
	}
	f.notified[id] = true
	return nil
}

func TestDispatcher_DeliversAndMarksNotifiedOnlyOnSuccess(t *testing.T) {
	store := &fakeSignalStore{pending: []*domain.EmittedSignal{
		{ID: 1, Mint: "a", Symbol: "A"},
		{ID: 2, Mint: "b", Symbol: "B"},
	}}
	sink := &fakeSink{failN: 1}

	d := NewDispatcher(sink, store, nil)
	d.drain(context.Background())

	store.mu.Lock()
	notified := len(store.notified)
	store.mu.Unlock()
	assert.Equal(t, 1, notified, "only the delivery that succeeded should be marked notified")

	d.drain(context.Background())
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.notified, 2, "retried delivery should succeed on the next drain")
}

func TestDispatcher_NotifyWakesRunLoop(t *testing.T) {
	store := &fakeSignalStore{pending: []*domain.EmittedSignal{{ID: 1, Mint: "a"}}}
	sink := &fakeSink{}
	d := NewDispatcher(sink, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, time.Hour) }()

	d.Notify(1)
	time.Sleep(20 * time.Millisecond)

	store.mu.Lock()
	sent := len(store.notified)
	store.mu.Unlock()
	assert.Equal(t, 1, sent)

	<-done
}
