package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSender struct {
	mu      sync.Mutex
	sent    []models.Notification
	sendErr error
}

func (m *mockSender) SendNotification(ctx context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.sendErr
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestNotificationDispatcher_DeliversQueued(t *testing.T) {
	sender := &mockSender{}
	d := NewNotificationDispatcher(sender, discardLogger(), 4, 1000)

	require.True(t, d.Enqueue(models.Notification{ID: "n1"}))
	require.True(t, d.Enqueue(models.Notification{ID: "n2"}))

	go d.Start(context.Background())
	require.Eventually(t, func() bool { return sender.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	d.Stop()

	assert.Equal(t, "n1", sender.sent[0].ID)
	assert.Equal(t, "n2", sender.sent[1].ID)
}

func TestNotificationDispatcher_FullQueueDrops(t *testing.T) {
	d := NewNotificationDispatcher(&mockSender{}, discardLogger(), 1, 1)

	assert.True(t, d.Enqueue(models.Notification{ID: "n1"}))
	assert.False(t, d.Enqueue(models.Notification{ID: "n2"}))
}

func TestNotificationDispatcher_SendErrorKeepsRunning(t *testing.T) {
	sender := &mockSender{sendErr: errors.New("ses unavailable")}
	d := NewNotificationDispatcher(sender, discardLogger(), 4, 1000)

	go d.Start(context.Background())
	d.Enqueue(models.Notification{ID: "n1"})
	d.Enqueue(models.Notification{ID: "n2"})

	require.Eventually(t, func() bool { return sender.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	d.Stop()
}

func TestNotificationDispatcher_StopsOnContextCancel(t *testing.T) {
	d := NewNotificationDispatcher(&mockSender{}, discardLogger(), 1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	go d.Start(ctx)
	cancel()

	select {
	case <-d.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

type mockPurger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockPurger) CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return 3, m.err
}

func (m *mockPurger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCleanupManager_RunsOnStartAndStops(t *testing.T) {
	purger := &mockPurger{}
	cm := NewCleanupManager(purger, discardLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return purger.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	cm.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_ErrorIsLogged(t *testing.T) {
	purger := &mockPurger{err: errors.New("db down")}
	cm := NewCleanupManager(purger, discardLogger(), time.Hour)

	cm.runCleanup(context.Background())
	assert.Equal(t, 1, purger.count())
}
