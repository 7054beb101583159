// Package notify fans a single fulfillment event out to independent delivery
// channels. Channels never see each other's failures: a dead SMTP relay must
// not stop the buyer's WhatsApp confirmation, and no channel error ever
// reaches the request that committed the order transition.
package notify

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/villebiz/marketplace-server/store"
)

// Event describes one committed order transition (or a manual reminder) to be
// announced. It is built once per transition and discarded after dispatch.
type Event struct {
	OrderReference string
	Title          string
	// Body is the buyer-facing message; Summary is the one-line version sent
	// to the seller and operator surfaces.
	Body    string
	Summary string
	Link    string

	BuyerEmail    string
	BuyerName     string
	BuyerPhone    string
	BusinessEmail string
	Amount        int64
	ReceiptNumber string

	Audience store.Audience
}

type Channel interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// Result is the outcome of one channel's delivery attempt.
type Result struct {
	Channel string
	Err     error
}

type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Dispatch sends the event on every channel concurrently and waits for all of
// them. Delivery is best-effort: failures are logged and reported in the
// results, never returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) []Result {
	results := make([]Result, len(d.channels))

	var wg sync.WaitGroup
	for i, ch := range d.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			err := ch.Send(ctx, event)
			results[i] = Result{Channel: ch.Name(), Err: err}
			if err != nil {
				log.WithError(err).WithFields(log.Fields{
					"channel":         ch.Name(),
					"order_reference": event.OrderReference,
				}).Error("notification channel failed")
			}
		}(i, ch)
	}
	wg.Wait()

	return results
}
