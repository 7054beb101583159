package orders

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/villebiz/marketplace-server/business"
	"github.com/villebiz/marketplace-server/models"
	"github.com/villebiz/marketplace-server/notify"
	"github.com/villebiz/marketplace-server/store"
)

// defaultCommissionRate is the marketplace cut applied when the caller does
// not price the commission itself.
const defaultCommissionRate = "0.05"

type Handler struct {
	orders         store.OrderStore
	dispatcher     business.EventDispatcher
	appURL         string
	commissionRate decimal.Decimal
}

func NewHandler(orders store.OrderStore, dispatcher business.EventDispatcher) *Handler {
	rateStr := os.Getenv("COMMISSION_RATE")
	if rateStr == "" {
		rateStr = defaultCommissionRate
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		log.WithError(err).Warn("invalid COMMISSION_RATE, using default")
		rate = decimal.RequireFromString(defaultCommissionRate)
	}
	return &Handler{
		orders:         orders,
		dispatcher:     dispatcher,
		appURL:         os.Getenv("APP_URL"),
		commissionRate: rate,
	}
}

type createOrderRequest struct {
	OrderReference   string `json:"order_reference"`
	ProductReference string `json:"product_reference"`
	BusinessEmail    string `json:"business_email"`
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	PhoneNumber      string `json:"phone_number"`
	TotalPrice       int64  `json:"total_price"`
	Quantity         int    `json:"quantity"`
	CarrierOption    string `json:"carrier_option"`
	PaymentMethod    string `json:"payment_method"`
	DiscountCode     string `json:"discount_code"`
	Discount         string `json:"discount"`
	City             string `json:"city"`
	PostalCode       string `json:"postal_code"`
	StreetAddress    string `json:"street_address"`
	LocationLatLong  string `json:"location_lat_long"`
	Type             string `json:"type"`
	Colors           string `json:"colors"`
	Sizes            string `json:"sizes"`
	Commission       string `json:"commission"`
	SellerTotal      string `json:"seller_total_earned"`
}

// CreateOrder records a new order. Orders always start Unpaid; payment is a
// separate step through /pay and the gateway callback.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.OrderReference == "" || req.ProductReference == "" || req.TotalPrice <= 0 || req.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_reference, product_reference, total_price and quantity are required"})
		return
	}

	if _, err := h.orders.Get(c.Request.Context(), req.OrderReference); err == nil {
		c.JSON(http.StatusOK, gin.H{"error": "An order with this reference already exists."})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add order"})
		return
	}

	commission, sellerTotal := h.splitEarnings(req)

	order := &models.Order{
		OrderReference:   req.OrderReference,
		ProductReference: req.ProductReference,
		BusinessEmail:    req.BusinessEmail,
		Email:            req.Email,
		FullName:         req.FullName,
		PhoneNumber:      req.PhoneNumber,
		TotalPrice:       req.TotalPrice,
		Quantity:         req.Quantity,
		CarrierOption:    req.CarrierOption,
		PaymentMethod:    req.PaymentMethod,
		OrderStatus:      models.OrderUnpaid,
		DiscountCode:     req.DiscountCode,
		Discount:         req.Discount,
		City:             req.City,
		PostalCode:       req.PostalCode,
		StreetAddress:    req.StreetAddress,
		LocationLatLong:  req.LocationLatLong,
		Type:             req.Type,
		Colors:           req.Colors,
		Sizes:            req.Sizes,
		Commission:       commission,
		SellerTotal:      sellerTotal,
	}

	if err := h.orders.Create(c.Request.Context(), order); err != nil {
		log.WithError(err).WithField("order_reference", req.OrderReference).Error("could not create order")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add order"})
		return
	}

	link := fmt.Sprintf("%s/orders/%s", h.appURL, order.OrderReference)
	h.dispatcher.Dispatch(c.Request.Context(), notify.Event{
		OrderReference: order.OrderReference,
		Title:          "Order placed confirmation",
		Body: fmt.Sprintf("Dear customer,\n\nThank you for placing an order with us! We noticed the payment is still pending.\n\n"+
			"To complete your purchase, please open the link below and proceed with the payment:\n\n%s\n\n"+
			"Once your payment is confirmed we will process your order and arrange delivery within 1-3 business days.\n\nBest regards, The Villebiz Team", link),
		Summary: fmt.Sprintf("%s has placed an %s order on a product worth Kes %d, please check your email",
			order.FullName, order.OrderStatus, order.TotalPrice),
		Link:          link,
		BuyerEmail:    order.Email,
		BuyerName:     order.FullName,
		BuyerPhone:    order.PhoneNumber,
		BusinessEmail: order.BusinessEmail,
		Amount:        order.TotalPrice,
		Audience:      store.Audience{Email: order.BusinessEmail},
	})

	c.JSON(http.StatusCreated, gin.H{"message": "Order added successfully", "reference": order.OrderReference})
}

// splitEarnings honors caller-supplied commission figures and otherwise
// derives them from the order total at the configured rate.
func (h *Handler) splitEarnings(req createOrderRequest) (decimal.Decimal, decimal.Decimal) {
	if req.Commission != "" {
		commission, err := decimal.NewFromString(req.Commission)
		if err == nil {
			sellerTotal, err := decimal.NewFromString(req.SellerTotal)
			if err != nil {
				sellerTotal = decimal.NewFromInt(req.TotalPrice).Sub(commission)
			}
			return commission, sellerTotal
		}
	}
	total := decimal.NewFromInt(req.TotalPrice)
	commission := total.Mul(h.commissionRate).Round(2)
	return commission, total.Sub(commission)
}

func (h *Handler) GetOrder(c *gin.Context) {
	reference := c.Param("reference")
	order, err := h.orders.Get(c.Request.Context(), reference)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No order found with reference %s", reference)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while retrieving the order information"})
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateOrderRequest struct {
	CarrierOption   *string `json:"carrier_option"`
	PaymentMethod   *string `json:"payment_method"`
	TotalPrice      *int64  `json:"total_price"`
	Quantity        *int    `json:"quantity"`
	OrderStatus     *string `json:"order_status"`
	LocationLatLong *string `json:"location_lat_long"`
	City            *string `json:"city"`
	StreetAddress   *string `json:"street_address"`
	PhoneNumber     *string `json:"phone_number"`
	Type            *string `json:"type"`
	PostalCode      *string `json:"postal_code"`
	Colors          *string `json:"colors"`
	Sizes           *string `json:"sizes"`
}

// UpdateOrder applies a manual detail or status change. Status changes go
// through the state machine: moving an order backward is rejected outright,
// no matter who asks.
func (h *Handler) UpdateOrder(c *gin.Context) {
	reference := c.Param("reference")

	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	order, err := h.orders.Get(c.Request.Context(), reference)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No record found for reference %s", reference)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	newStatus := order.OrderStatus
	if req.OrderStatus != nil && models.OrderStatus(*req.OrderStatus) != order.OrderStatus {
		newStatus = models.OrderStatus(*req.OrderStatus)
		if !newStatus.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown order status %q", *req.OrderStatus)})
			return
		}
		if !order.OrderStatus.CanTransitionTo(newStatus) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": fmt.Sprintf("Order status cannot change from %s to %s", order.OrderStatus, newStatus),
			})
			return
		}
		moved, err := h.orders.UpdateStatus(c.Request.Context(), reference, order.OrderStatus, newStatus)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
			return
		}
		if !moved {
			// A concurrent change advanced the order first.
			c.JSON(http.StatusConflict, gin.H{"error": "Order status changed concurrently, re-fetch and retry"})
			return
		}
	}

	fields := detailFields(req)
	if len(fields) > 0 {
		if _, err := h.orders.UpdateDetails(c.Request.Context(), reference, fields); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
			return
		}
	}

	link := fmt.Sprintf("%s/orders/%s", h.appURL, reference)
	h.dispatcher.Dispatch(c.Request.Context(), notify.Event{
		OrderReference: reference,
		Title:          "Order update",
		Body:           fmt.Sprintf("Dear customer, your %s order has been updated.\nClick here to view your order: %s", newStatus, link),
		Summary:        fmt.Sprintf("%s order %s has been updated", newStatus, reference),
		Link:           link,
		BuyerEmail:     order.Email,
		BuyerName:      order.FullName,
		BuyerPhone:     order.PhoneNumber,
		BusinessEmail:  order.BusinessEmail,
		Amount:         order.TotalPrice,
		Audience:       store.Audience{Email: order.BusinessEmail},
	})

	c.JSON(http.StatusOK, gin.H{"message": "Order details updated successfully"})
}

func detailFields(req updateOrderRequest) map[string]interface{} {
	fields := make(map[string]interface{})
	if req.CarrierOption != nil {
		fields["carrier_option"] = *req.CarrierOption
	}
	if req.PaymentMethod != nil {
		fields["payment_method"] = *req.PaymentMethod
	}
	if req.TotalPrice != nil {
		fields["total_price"] = *req.TotalPrice
	}
	if req.Quantity != nil {
		fields["quantity"] = *req.Quantity
	}
	if req.LocationLatLong != nil {
		fields["location_lat_long"] = *req.LocationLatLong
	}
	if req.City != nil {
		fields["city"] = *req.City
	}
	if req.StreetAddress != nil {
		fields["street_address"] = *req.StreetAddress
	}
	if req.PhoneNumber != nil {
		fields["phone_number"] = *req.PhoneNumber
	}
	if req.Type != nil {
		fields["type"] = *req.Type
	}
	if req.PostalCode != nil {
		fields["postal_code"] = *req.PostalCode
	}
	if req.Colors != nil {
		fields["colors"] = *req.Colors
	}
	if req.Sizes != nil {
		fields["sizes"] = *req.Sizes
	}
	return fields
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	reference := c.Param("reference")
	err := h.orders.Delete(c.Request.Context(), reference)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No record found for reference %s", reference)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}

type noticeRequest struct {
	Notice string `json:"notice"`
	To     string `json:"to"`
}

// SendNotice re-sends a reminder about an existing order. It deliberately
// bypasses the state machine: nothing about the order changes.
func (h *Handler) SendNotice(c *gin.Context) {
	reference := c.Param("reference")

	var req noticeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Notice == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notice is required"})
		return
	}

	order, err := h.orders.Get(c.Request.Context(), reference)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No record found for reference %s", reference)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send notice"})
		return
	}

	phone := req.To
	if phone == "" {
		phone = order.PhoneNumber
	}
	link := fmt.Sprintf("%s/orders/%s", h.appURL, reference)
	h.dispatcher.Dispatch(c.Request.Context(), notify.Event{
		OrderReference: reference,
		Title:          "Order notice",
		Body:           req.Notice,
		Summary:        fmt.Sprintf("Notice sent for order %s (%s)", reference, order.OrderStatus),
		Link:           link,
		BuyerEmail:     order.Email,
		BuyerName:      order.FullName,
		BuyerPhone:     phone,
		BusinessEmail:  order.BusinessEmail,
		Amount:         order.TotalPrice,
		Audience:       store.Audience{Email: order.Email},
	})

	c.JSON(http.StatusOK, gin.H{"msg": "Notice sent successfully"})
}
