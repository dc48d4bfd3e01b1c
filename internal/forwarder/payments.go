package forwarder

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Payments is an in-memory, illustrative adapter for the "payments"
// tool, ported from the original gateway's simulated payments
// collaborator: create() validates amount/currency/vendor_id and mints
// a payment id, refund() requires the payment to already exist.
type Payments struct {
	mu       sync.Mutex
	payments map[string]paymentRecord
}

type paymentRecord struct {
	Amount   float64
	Currency string
	VendorID string
	Status   string
}

// NewPayments creates an empty Payments adapter.
func NewPayments() *Payments {
	return &Payments{payments: make(map[string]paymentRecord)}
}

func (p *Payments) Forward(action string, params map[string]any) (map[string]any, error) {
	switch action {
	case "create":
		return p.create(params)
	case "refund":
		return p.refund(params)
	default:
		return nil, fmt.Errorf("payments: unknown action %q", action)
	}
}

func (p *Payments) create(params map[string]any) (map[string]any, error) {
	amount, _ := params["amount"].(float64)
	currency, _ := params["currency"].(string)
	vendorID, _ := params["vendor_id"].(string)

	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if currency == "" {
		return nil, fmt.Errorf("currency is required")
	}
	if vendorID == "" {
		return nil, fmt.Errorf("vendor_id is required")
	}

	id := randomHex(16)
	time.Sleep(10 * time.Millisecond) // simulated downstream latency

	p.mu.Lock()
	p.payments[id] = paymentRecord{Amount: amount, Currency: currency, VendorID: vendorID, Status: "completed"}
	p.mu.Unlock()

	return map[string]any{
		"payment_id": id,
		"amount":     amount,
		"currency":   currency,
		"status":     "completed",
	}, nil
}

func (p *Payments) refund(params map[string]any) (map[string]any, error) {
	paymentID, _ := params["payment_id"].(string)
	if paymentID == "" {
		return nil, fmt.Errorf("payment_id is required")
	}

	p.mu.Lock()
	_, ok := p.payments[paymentID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("payment %q not found", paymentID)
	}

	time.Sleep(10 * time.Millisecond)
	return map[string]any{
		"refund_id":  randomHex(16),
		"payment_id": paymentID,
		"status":     "refunded",
	}, nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
