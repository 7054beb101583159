package models

import "time"

// Transaction is the append-only record of one gateway callback. The external
// reference the gateway reports is the order reference the prompt was raised
// for, and it is unique: a second callback carrying the same reference is a
// duplicate delivery, not a new transaction. Rows are never updated.
type Transaction struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ExternalReference string    `gorm:"uniqueIndex;not null" json:"external_reference"`
	MpesaReceiptNo    string    `gorm:"column:mpesa_receipt_number" json:"mpesa_receipt_number"`
	CheckoutRequestID string    `json:"checkout_request_id"`
	MerchantRequestID string    `json:"merchant_request_id"`
	Amount            int64     `json:"amount"`
	PhoneNumber       string    `json:"phone_number"`
	ResultCode        string    `json:"result_code"`
	ResultDescription string    `json:"result_description"`
	Status            string    `gorm:"not null" json:"status"` // gateway-reported "Success" or "Failed"
	CreatedAt         time.Time `json:"created_at"`
}

// Succeeded reports whether the gateway confirmed the payment.
func (t *Transaction) Succeeded() bool {
	return t.Status == "Success"
}
