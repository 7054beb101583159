package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villebiz/marketplace-server/models"
	"github.com/villebiz/marketplace-server/store"
)

type stubChannel struct {
	name  string
	err   error
	calls int32
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(_ context.Context, _ Event) error {
	atomic.AddInt32(&c.calls, 1)
	return c.err
}

func TestDispatchReachesEveryChannel(t *testing.T) {
	whatsapp := &stubChannel{name: "whatsapp"}
	email := &stubChannel{name: "email"}
	push := &stubChannel{name: "webpush"}
	d := NewDispatcher(whatsapp, email, push)

	results := d.Dispatch(context.Background(), Event{OrderReference: "ORD-1"})

	require.Len(t, results, 3)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&whatsapp.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&email.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&push.calls))
}

func TestDispatchIsolatesChannelFailures(t *testing.T) {
	smtpDown := errors.New("smtp connect refused")
	whatsapp := &stubChannel{name: "whatsapp"}
	email := &stubChannel{name: "email", err: smtpDown}
	push := &stubChannel{name: "webpush"}
	d := NewDispatcher(whatsapp, email, push)

	results := d.Dispatch(context.Background(), Event{OrderReference: "ORD-1"})

	require.Len(t, results, 3)
	byChannel := make(map[string]error, len(results))
	for _, res := range results {
		byChannel[res.Channel] = res.Err
	}
	assert.NoError(t, byChannel["whatsapp"])
	assert.ErrorIs(t, byChannel["email"], smtpDown)
	assert.NoError(t, byChannel["webpush"])

	assert.Equal(t, int32(1), atomic.LoadInt32(&whatsapp.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&push.calls))
}

func TestDispatchWithNoChannels(t *testing.T) {
	d := NewDispatcher()
	results := d.Dispatch(context.Background(), Event{OrderReference: "ORD-1"})
	assert.Empty(t, results)
}

type emptySubscriptions struct{}

func (emptySubscriptions) Upsert(context.Context, *models.PushSubscription) error { return nil }
func (emptySubscriptions) Remove(context.Context, string) error                   { return nil }
func (emptySubscriptions) ListForAudience(context.Context, store.Audience) ([]models.PushSubscription, error) {
	return nil, nil
}

type memLog struct {
	records []*models.Notification
}

func (l *memLog) Append(_ context.Context, n *models.Notification) error {
	l.records = append(l.records, n)
	return nil
}

func (l *memLog) Get(context.Context, string) (*models.Notification, error) {
	return nil, store.ErrNotFound
}

func (l *memLog) ListForEmail(context.Context, string) ([]models.Notification, error) {
	return nil, nil
}

func TestWebPushChannelRecordsDispatchedEvent(t *testing.T) {
	notificationLog := &memLog{}
	ch := NewWebPushChannel(NewBroadcasterFromEnv(emptySubscriptions{}), notificationLog)

	err := ch.Send(context.Background(), Event{
		OrderReference: "ORD-1",
		Title:          "Payment Confirmation",
		Summary:        "Jane Buyer has paid Kes 1500 for order ORD-1",
		Link:           "https://villebiz.com/orders/ORD-1",
		BusinessEmail:  "seller@example.com",
	})
	require.NoError(t, err)

	require.Len(t, notificationLog.records, 1)
	record := notificationLog.records[0]
	assert.NotEmpty(t, record.NotificationReference)
	assert.Equal(t, "Payment Confirmation", record.Title)
	assert.Equal(t, "Jane Buyer has paid Kes 1500 for order ORD-1", record.Body)
	assert.Equal(t, "seller@example.com", record.To)
	assert.False(t, record.SentOn.IsZero())
}
