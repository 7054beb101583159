package business

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villebiz/marketplace-server/models"
	"github.com/villebiz/marketplace-server/notify"
	"github.com/villebiz/marketplace-server/store"
)

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		s.orders[o.OrderReference] = o
	}
	return s
}

func (s *fakeOrderStore) Get(_ context.Context, reference string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[reference]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *fakeOrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderReference] = order
	return nil
}

func (s *fakeOrderStore) UpdateStatus(_ context.Context, reference string, from, to models.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[reference]
	if !ok || o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = to
	return true, nil
}

func (s *fakeOrderStore) UpdateDetails(_ context.Context, reference string, _ map[string]interface{}) (*models.Order, error) {
	return s.Get(context.Background(), reference)
}

func (s *fakeOrderStore) Delete(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[reference]; !ok {
		return store.ErrNotFound
	}
	delete(s.orders, reference)
	return nil
}

type fakeLedger struct {
	mu  sync.Mutex
	txs map[string]*models.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{txs: make(map[string]*models.Transaction)}
}

func (l *fakeLedger) InsertIfAbsent(_ context.Context, tx *models.Transaction) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.txs[tx.ExternalReference]; ok {
		return false, nil
	}
	l.txs[tx.ExternalReference] = tx
	return true, nil
}

func (l *fakeLedger) Get(_ context.Context, externalReference string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[externalReference]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tx, nil
}

func (l *fakeLedger) List(_ context.Context) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Transaction
	for _, tx := range l.txs {
		out = append(out, *tx)
	}
	return out, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notify.Event) []notify.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func unpaidOrder(reference string) *models.Order {
	return &models.Order{
		OrderReference:   reference,
		ProductReference: "PRD-1",
		Email:            "buyer@example.com",
		FullName:         "Jane Buyer",
		PhoneNumber:      "254712345678",
		BusinessEmail:    "seller@example.com",
		TotalPrice:       1500,
		Quantity:         1,
		OrderStatus:      models.OrderUnpaid,
	}
}

func successCallback(reference string) CallbackData {
	return CallbackData{
		ExternalReference:  reference,
		MpesaReceiptNumber: "SBK12345",
		CheckoutRequestID:  "ws_CO_1",
		Amount:             1500,
		Phone:              "254712345678",
		ResultCode:         "0",
		ResultDesc:         "The service request is processed successfully.",
		Status:             "Success",
	}
}

func TestReconcileMarksOrderPaidOnce(t *testing.T) {
	orders := newFakeOrderStore(unpaidOrder("ORD-1"))
	ledger := newFakeLedger()
	dispatcher := &recordingDispatcher{}
	r := NewReconciler(orders, ledger, dispatcher, "https://villebiz.com")

	outcome, err := r.Reconcile(context.Background(), successCallback("ORD-1"))
	require.NoError(t, err)
	assert.True(t, outcome.Transitioned)
	assert.False(t, outcome.Duplicate)
	require.NotNil(t, outcome.Order)
	assert.Equal(t, models.OrderPaid, outcome.Order.OrderStatus)

	stored, err := orders.Get(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.OrderStatus)
	assert.Equal(t, 1, dispatcher.count())
	assert.Equal(t, "SBK12345", dispatcher.events[0].ReceiptNumber)
}

func TestReconcileDuplicateCallbackIsAbsorbed(t *testing.T) {
	orders := newFakeOrderStore(unpaidOrder("ORD-1"))
	ledger := newFakeLedger()
	dispatcher := &recordingDispatcher{}
	r := NewReconciler(orders, ledger, dispatcher, "https://villebiz.com")

	first, err := r.Reconcile(context.Background(), successCallback("ORD-1"))
	require.NoError(t, err)
	assert.True(t, first.Transitioned)

	for i := 0; i < 3; i++ {
		again, err := r.Reconcile(context.Background(), successCallback("ORD-1"))
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.False(t, again.Transitioned)
	}

	assert.Equal(t, 1, dispatcher.count())
	stored, _ := orders.Get(context.Background(), "ORD-1")
	assert.Equal(t, models.OrderPaid, stored.OrderStatus)
}

func TestReconcileConcurrentDuplicatesSettleOnce(t *testing.T) {
	orders := newFakeOrderStore(unpaidOrder("ORD-1"))
	ledger := newFakeLedger()
	dispatcher := &recordingDispatcher{}
	r := NewReconciler(orders, ledger, dispatcher, "https://villebiz.com")

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := r.Reconcile(context.Background(), successCallback("ORD-1"))
			if err != nil {
				return
			}
			if outcome.Transitioned {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitions)
	assert.Equal(t, 1, dispatcher.count())
}

func TestReconcileOrphanCallback(t *testing.T) {
	orders := newFakeOrderStore()
	ledger := newFakeLedger()
	dispatcher := &recordingDispatcher{}
	r := NewReconciler(orders, ledger, dispatcher, "https://villebiz.com")

	_, err := r.Reconcile(context.Background(), successCallback("ORD-MISSING"))
	assert.ErrorIs(t, err, ErrOrphanCallback)
	assert.Equal(t, 0, dispatcher.count())
}

func TestReconcileFailedPaymentRecordsWithoutTransition(t *testing.T) {
	orders := newFakeOrderStore(unpaidOrder("ORD-1"))
	ledger := newFakeLedger()
	dispatcher := &recordingDispatcher{}
	r := NewReconciler(orders, ledger, dispatcher, "https://villebiz.com")

	cb := successCallback("ORD-1")
	cb.Status = "Failed"
	cb.ResultCode = "1032"
	cb.ResultDesc = "Request cancelled by user"

	outcome, err := r.Reconcile(context.Background(), cb)
	require.NoError(t, err)
	assert.False(t, outcome.Transitioned)
	assert.False(t, outcome.Duplicate)

	stored, _ := orders.Get(context.Background(), "ORD-1")
	assert.Equal(t, models.OrderUnpaid, stored.OrderStatus)
	assert.Equal(t, 0, dispatcher.count())

	tx, err := ledger.Get(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "Failed", tx.Status)
}

func TestReconcileAlreadySettledOrderIsNotRetransitioned(t *testing.T) {
	paid := unpaidOrder("ORD-1")
	paid.OrderStatus = models.OrderDelivered
	orders := newFakeOrderStore(paid)
	ledger := newFakeLedger()
	dispatcher := &recordingDispatcher{}
	r := NewReconciler(orders, ledger, dispatcher, "https://villebiz.com")

	outcome, err := r.Reconcile(context.Background(), successCallback("ORD-1"))
	require.NoError(t, err)
	assert.False(t, outcome.Transitioned)

	stored, _ := orders.Get(context.Background(), "ORD-1")
	assert.Equal(t, models.OrderDelivered, stored.OrderStatus)
	assert.Equal(t, 0, dispatcher.count())
}

func TestReconcileRejectsIncompleteCallback(t *testing.T) {
	r := NewReconciler(newFakeOrderStore(), newFakeLedger(), &recordingDispatcher{}, "")

	_, err := r.Reconcile(context.Background(), CallbackData{Status: "Success"})
	assert.ErrorIs(t, err, ErrInvalidPaymentRequest)

	_, err = r.Reconcile(context.Background(), CallbackData{ExternalReference: "ORD-1"})
	assert.ErrorIs(t, err, ErrInvalidPaymentRequest)
}
