package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/villebiz/marketplace-server/business"
	"github.com/villebiz/marketplace-server/models"
	"github.com/villebiz/marketplace-server/payhero"
	"github.com/villebiz/marketplace-server/store"
	"github.com/villebiz/marketplace-server/utils"
)

// PromptGateway is satisfied by payhero.Client.
type PromptGateway interface {
	RequestPrompt(ctx context.Context, externalReference string, amount int64, phoneNumber string) (*payhero.PromptResponse, error)
}

type Handler struct {
	gateway        PromptGateway
	orders         store.OrderStore
	ledger         store.TransactionLedger
	reconciler     *business.Reconciler
	appURL         string
	callbackSecret string
}

func NewHandler(gateway PromptGateway, orders store.OrderStore, ledger store.TransactionLedger, reconciler *business.Reconciler) *Handler {
	return &Handler{
		gateway:        gateway,
		orders:         orders,
		ledger:         ledger,
		reconciler:     reconciler,
		appURL:         os.Getenv("APP_URL"),
		callbackSecret: os.Getenv("CALLBACK_SECRET"),
	}
}

type initiateRequest struct {
	ExternalReference string `json:"external_reference" form:"external_reference"`
	Amount            int64  `json:"amount" form:"amount"`
	PhoneNumber       string `json:"phone_number" form:"phone_number"`
}

// InitiateSTK raises a payment prompt on the payer's phone. POST /pay takes a
// JSON body; GET /pay_now takes the same fields as query parameters and
// answers with an HTML status page the buyer can be linked to directly.
// Initiation only dispatches the prompt: the order stays Unpaid until the
// gateway confirms through the callback, and retrying here is always safe.
func (h *Handler) InitiateSTK(c *gin.Context) {
	wantsHTML := c.Request.Method == http.MethodGet

	var req initiateRequest
	var err error
	if wantsHTML {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil || req.ExternalReference == "" || req.Amount <= 0 || req.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external_reference, amount and phone_number are required"})
		return
	}

	order, err := h.orders.Get(c.Request.Context(), req.ExternalReference)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No order found with reference %s", req.ExternalReference)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if order.OrderStatus != models.OrderUnpaid {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Order %s is not awaiting payment", order.OrderReference)})
		return
	}

	prompt, err := h.gateway.RequestPrompt(c.Request.Context(), req.ExternalReference, req.Amount, req.PhoneNumber)
	if err != nil || prompt == nil || !prompt.Success {
		log.WithError(err).WithField("external_reference", req.ExternalReference).Error("stk push was unsuccessful")
		if wantsHTML {
			h.renderSTKPage(c, req.ExternalReference, false)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "stk push was unsuccessful"})
		return
	}

	if wantsHTML {
		h.renderSTKPage(c, req.ExternalReference, true)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"response": gin.H{
		"external_reference": req.ExternalReference,
		"data":               json.RawMessage(prompt.Raw),
	}})
}

type callbackEnvelope struct {
	Response struct {
		ExternalReference  string  `json:"ExternalReference"`
		MpesaReceiptNumber string  `json:"MpesaReceiptNumber"`
		CheckoutRequestID  string  `json:"CheckoutRequestID"`
		MerchantRequestID  string  `json:"MerchantRequestID"`
		Amount             float64 `json:"Amount"`
		Phone              string  `json:"Phone"`
		ResultCode         string  `json:"ResultCode"`
		ResultDesc         string  `json:"ResultDesc"`
		Status             string  `json:"Status"`
	} `json:"response"`
}

// Callback is the gateway webhook. Deliveries may repeat or race; the
// reconciler makes replays harmless, so the gateway can retry freely.
func (h *Handler) Callback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if h.callbackSecret != "" {
		signature := c.GetHeader("X-Callback-Signature")
		if signature == "" || !utils.VerifySignature(h.callbackSecret, body, signature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid callback signature"})
			return
		}
	}

	var envelope callbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	cb := business.CallbackData{
		ExternalReference:  envelope.Response.ExternalReference,
		MpesaReceiptNumber: envelope.Response.MpesaReceiptNumber,
		CheckoutRequestID:  envelope.Response.CheckoutRequestID,
		MerchantRequestID:  envelope.Response.MerchantRequestID,
		Amount:             int64(envelope.Response.Amount),
		Phone:              envelope.Response.Phone,
		ResultCode:         envelope.Response.ResultCode,
		ResultDesc:         envelope.Response.ResultDesc,
		Status:             envelope.Response.Status,
	}

	outcome, err := h.reconciler.Reconcile(c.Request.Context(), cb)
	switch {
	case errors.Is(err, business.ErrInvalidPaymentRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields in callback"})
	case errors.Is(err, business.ErrOrphanCallback):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No order found with reference %s", cb.ExternalReference)})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add transaction"})
	case outcome.Duplicate:
		c.JSON(http.StatusOK, gin.H{"error": fmt.Sprintf("A transaction with reference %s already exists.", cb.ExternalReference)})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Transaction added successfully"})
	}
}

func (h *Handler) GetTransactions(c *gin.Context) {
	txs, err := h.ledger.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txs, "rows": len(txs)})
}

func (h *Handler) GetTransaction(c *gin.Context) {
	reference := c.Param("external_reference")
	tx, err := h.ledger.Get(c.Request.Context(), reference)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No record found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get transaction"})
		return
	}
	c.JSON(http.StatusOK, tx)
}

const stkPageTemplate = `<html>
    <head>
        <title>STK Push Status</title>
        <style>
            body { font-family: Arial, sans-serif; background-color: #f4f4f4; color: #333; padding: 20px; display: flex; flex-direction: column; align-items: center; justify-content: center; height: 100vh; }
            h1 { color: %s; }
            p { font-size: 18px; }
        </style>
    </head>
    <body>
        <h1>%s</h1>
        <p>%s</p>
        <a href="%s/orders/%s" style="text-decoration: none; color: white; background-color: #4CAF50; padding: 10px 20px; border-radius: 5px;">View Order</a>
    </body>
</html>`

func (h *Handler) renderSTKPage(c *gin.Context, reference string, ok bool) {
	heading := "STK Push Successful"
	detail := "Thank you! Your payment process has been initiated successfully. Complete the transaction on your phone."
	color := "#4CAF50"
	if !ok {
		heading = "STK Push Unsuccessful"
		detail = "Sorry! Your payment could not be initiated. Please try again."
		color = "red"
	}
	page := fmt.Sprintf(stkPageTemplate, color, heading, detail, h.appURL, reference)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
