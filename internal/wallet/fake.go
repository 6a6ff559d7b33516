package wallet

import (
	"context"
	"math/big"
	"sync"
)

// Fake is an in-memory Client for tests — no network calls, an
// idempotency-key ledger, and scriptable invoice/balance responses.
//
// Production: HTTPClient (see http.go).
// Tests: Fake.
type Fake struct {
	mu sync.Mutex

	Invoices map[string]Invoice
	Balance  *big.Float

	sent map[string]bool
	Sends []FakeSend
}

type FakeSend struct {
	IdempotencyKey string
	Address        string
	Amount         *big.Float
}

func NewFake() *Fake {
	return &Fake{
		Invoices: map[string]Invoice{},
		Balance:  big.NewFloat(0),
		sent:     map[string]bool{},
	}
}

func (f *Fake) FetchInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	invoice, ok := f.Invoices[invoiceID]
	if !ok {
		return Invoice{}, &invoiceNotFoundError{id: invoiceID}
	}

	return invoice, nil
}

func (f *Fake) CheckBalance(ctx context.Context) (*big.Float, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return new(big.Float).Copy(f.Balance), nil
}

func (f *Fake) SendMoney(ctx context.Context, idempotencyKey, address string, amount *big.Float) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sent[idempotencyKey] {
		return nil
	}

	if f.Balance.Cmp(amount) < 0 {
		return &ErrInsufficientBalance{Available: f.Balance, Required: amount}
	}

	f.sent[idempotencyKey] = true
	f.Sends = append(f.Sends, FakeSend{IdempotencyKey: idempotencyKey, Address: address, Amount: amount})
	f.Balance = new(big.Float).Sub(f.Balance, amount)

	return nil
}

type invoiceNotFoundError struct{ id string }

func (e *invoiceNotFoundError) Error() string {
	return "invoice not found: " + e.id
}

var _ Client = (*Fake)(nil)
