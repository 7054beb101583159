package business

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/villebiz/marketplace-server/models"
	"github.com/villebiz/marketplace-server/notify"
	"github.com/villebiz/marketplace-server/store"
)

// CallbackData is the gateway's payment confirmation, already decoded from
// the webhook envelope. The external reference is the order reference the
// prompt was raised with.
type CallbackData struct {
	ExternalReference  string
	MpesaReceiptNumber string
	CheckoutRequestID  string
	MerchantRequestID  string
	Amount             int64
	Phone              string
	ResultCode         string
	ResultDesc         string
	Status             string
}

// Outcome reports what a reconciliation did.
type Outcome struct {
	// Duplicate means an identical callback was seen before; nothing changed.
	Duplicate bool
	// Transitioned means the order moved Unpaid -> Paid on this call.
	Transitioned bool
	Order        *models.Order
}

// EventDispatcher is satisfied by notify.Dispatcher.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event notify.Event) []notify.Result
}

// Reconciler matches asynchronous gateway confirmations to orders and
// settles each order exactly once. Two guards make that hold under duplicate
// and out-of-order delivery: the ledger's unique external reference absorbs
// replayed callbacks, and the conditional Unpaid -> Paid update refuses to
// touch an order that is already past Unpaid. Neither guard alone is enough.
type Reconciler struct {
	orders     store.OrderStore
	ledger     store.TransactionLedger
	dispatcher EventDispatcher
	appURL     string
}

func NewReconciler(orders store.OrderStore, ledger store.TransactionLedger, dispatcher EventDispatcher, appURL string) *Reconciler {
	return &Reconciler{
		orders:     orders,
		ledger:     ledger,
		dispatcher: dispatcher,
		appURL:     appURL,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, cb CallbackData) (Outcome, error) {
	if cb.ExternalReference == "" || cb.Status == "" {
		return Outcome{}, ErrInvalidPaymentRequest
	}

	logger := log.WithFields(log.Fields{
		"external_reference": cb.ExternalReference,
		"mpesa_receipt":      cb.MpesaReceiptNumber,
		"status":             cb.Status,
	})

	tx := &models.Transaction{
		ExternalReference: cb.ExternalReference,
		MpesaReceiptNo:    cb.MpesaReceiptNumber,
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		Amount:            cb.Amount,
		PhoneNumber:       cb.Phone,
		ResultCode:        cb.ResultCode,
		ResultDescription: cb.ResultDesc,
		Status:            cb.Status,
	}

	inserted, err := r.ledger.InsertIfAbsent(ctx, tx)
	if err != nil {
		return Outcome{}, fmt.Errorf("record transaction: %w", err)
	}
	if !inserted {
		logger.Info("duplicate callback absorbed")
		return Outcome{Duplicate: true}, nil
	}

	order, err := r.orders.Get(ctx, cb.ExternalReference)
	if errors.Is(err, store.ErrNotFound) {
		logger.Error("callback has no matching order")
		return Outcome{}, fmt.Errorf("%w: %s", ErrOrphanCallback, cb.ExternalReference)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load order: %w", err)
	}

	if !tx.Succeeded() {
		// Failed payment: the transaction is on record so a replayed failure
		// dedups, but the order stays Unpaid and can be prompted again.
		logger.WithField("result_desc", cb.ResultDesc).Info("gateway reported failure, order left unpaid")
		return Outcome{Order: order}, nil
	}

	moved, err := r.orders.UpdateStatus(ctx, order.OrderReference, models.OrderUnpaid, models.OrderPaid)
	if err != nil {
		return Outcome{Order: order}, fmt.Errorf("transition order: %w", err)
	}
	if !moved {
		// The order already advanced past Unpaid, through a racing callback
		// or a manual change. Never retransition.
		logger.WithField("order_status", order.OrderStatus).Warn("order already settled, skipping transition")
		return Outcome{Order: order}, nil
	}
	order.OrderStatus = models.OrderPaid
	logger.Info("order marked paid")

	r.dispatcher.Dispatch(ctx, r.paymentEvent(order, cb))

	return Outcome{Transitioned: true, Order: order}, nil
}

func (r *Reconciler) paymentEvent(order *models.Order, cb CallbackData) notify.Event {
	link := fmt.Sprintf("%s/orders/%s", r.appURL, order.OrderReference)
	return notify.Event{
		OrderReference: order.OrderReference,
		Title:          "Payment Confirmation",
		Body: fmt.Sprintf("Dear %s,\n\nThank you for your purchase! We are delighted to confirm that your order has been successfully paid.\n\n"+
			"Your order is now being processed and will be delivered within 1-3 business days. You can track your order here:\n\n%s\n\n"+
			"Thank you for choosing us!\n\nBest regards, The Villebiz Team", order.FullName, link),
		Summary: fmt.Sprintf("%s has paid Kes %d for order %s (receipt %s), please check your email",
			order.FullName, order.TotalPrice, order.OrderReference, cb.MpesaReceiptNumber),
		Link:          link,
		BuyerEmail:    order.Email,
		BuyerName:     order.FullName,
		BuyerPhone:    order.PhoneNumber,
		BusinessEmail: order.BusinessEmail,
		Amount:        order.TotalPrice,
		ReceiptNumber: cb.MpesaReceiptNumber,
		Audience:      store.Audience{ForSellers: true},
	}
}
