package model

import "time"

// SaleLine is one line item of a sale.
type SaleLine struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount,omitempty"`
	TaxRate   float64 `json:"tax_rate,omitempty"`
	TaxAmount float64 `json:"tax_amount,omitempty"`
}

// SaleDraft is the sale as submitted by the register, before the coordinator
// assigns identity.
type SaleDraft struct {
	Items         []SaleLine `json:"items"`
	PaymentMethod string     `json:"payment_method"`
	Tax           float64    `json:"tax"`
	Discount      float64    `json:"discount"`
	AmountPaid    float64    `json:"amount_paid,omitempty"`
	CashierID     string     `json:"cashier_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
}

// SalePayload is the wire body sent to the backend's sale endpoint. ID is
// generated client-side before any network attempt and doubles as the
// idempotency key for redelivery.
type SalePayload struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	SaleDraft
}

// SaleAck is the backend's acknowledgement of a durably accepted sale.
type SaleAck struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url,omitempty"`
}

// SaleResult is what the coordinator reports back to the register. A sale
// that could not reach the backend is still a success with Queued set; the
// register keeps moving and the queue delivers later.
type SaleResult struct {
	Success    bool   `json:"success"`
	SaleID     string `json:"sale_id"`
	Queued     bool   `json:"queued,omitempty"`
	InvoiceURL string `json:"invoice_url,omitempty"`
}
