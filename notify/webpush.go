package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/villebiz/marketplace-server/models"
	"github.com/villebiz/marketplace-server/store"
)

// Broadcaster pushes a payload to every browser subscription matching an
// audience. It backs both the dispatcher's push channel and the manual
// /send_notification endpoint.
type Broadcaster struct {
	subs            store.SubscriptionStore
	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
}

func NewBroadcasterFromEnv(subs store.SubscriptionStore) *Broadcaster {
	return &Broadcaster{
		subs:            subs,
		subscriber:      "mailto:" + os.Getenv("TRANSPORTER"),
		vapidPublicKey:  os.Getenv("PUBLIC_VAPID_KEY"),
		vapidPrivateKey: os.Getenv("PRIVATE_VAPID_KEY"),
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Broadcast sends to each matching subscription, skipping over individual
// failures; it only errors when no subscription could be loaded at all.
func (b *Broadcaster) Broadcast(ctx context.Context, title, body, link, icon string, audience store.Audience) (int, error) {
	subscriptions, err := b.subs.ListForAudience(ctx, audience)
	if err != nil {
		return 0, err
	}
	if len(subscriptions) == 0 {
		return 0, nil
	}

	payload, err := json.Marshal(pushPayload{Title: title, Body: body, Link: link, Icon: icon})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range subscriptions {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, &webpush.Options{
			Subscriber:      b.subscriber,
			VAPIDPublicKey:  b.vapidPublicKey,
			VAPIDPrivateKey: b.vapidPrivateKey,
			TTL:             60,
		})
		if err != nil {
			log.WithError(err).WithField("endpoint", sub.Endpoint).Warn("web push delivery failed")
			continue
		}
		resp.Body.Close()
		sent++
	}
	return sent, nil
}

// WebPushChannel adapts the broadcaster to the dispatcher's Channel
// interface. Every dispatched event also lands in the notification log so
// sellers can re-read what was pushed.
type WebPushChannel struct {
	broadcaster *Broadcaster
	log         store.NotificationLog
}

func NewWebPushChannel(b *Broadcaster, notificationLog store.NotificationLog) *WebPushChannel {
	return &WebPushChannel{broadcaster: b, log: notificationLog}
}

func (c *WebPushChannel) Name() string { return "webpush" }

func (c *WebPushChannel) Send(ctx context.Context, event Event) error {
	body := event.Summary
	if body == "" {
		body = event.Body
	}
	_, err := c.broadcaster.Broadcast(ctx, event.Title, body, event.Link, "", event.Audience)
	if err != nil {
		return fmt.Errorf("broadcast for order %s: %w", event.OrderReference, err)
	}

	if c.log != nil {
		record := &models.Notification{
			NotificationReference: uuid.NewString(),
			Title:                 event.Title,
			Body:                  body,
			To:                    event.BusinessEmail,
			Link:                  event.Link,
			SentOn:                time.Now().UTC(),
		}
		if err := c.log.Append(ctx, record); err != nil {
			log.WithError(err).WithField("order_reference", event.OrderReference).
				Warn("could not record pushed notification")
		}
	}
	return nil
}
