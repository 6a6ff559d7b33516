// Package wallet is a thin client over the external cryptocurrency wallet
// API used to settle bitcoin-payment checkouts; the wallet provider itself
// is an external collaborator, and this is the narrow surface the
// orchestrator needs against it. Grounded on oxzoid-OSPay's
// idempotency-key-before-write pattern (pkg/api/orders.go) and its BSC
// transfer-verification call shape (pkg/blockchain/bsc.go), adapted from an
// on-chain verifier into an outbound payment client.
package wallet

import (
	"context"
	"math/big"
)

// Invoice is the subset of invoice-provider JSON the checkout flow needs to
// fetch invoice JSON and verify status=="new".
type Invoice struct {
	ID              string
	Status          string
	BTCDue          *big.Float
	BitcoinAddress  string
}

// ErrInsufficientBalance is returned by SendMoney when the wallet cannot
// cover the requested amount.
type ErrInsufficientBalance struct {
	Available *big.Float
	Required  *big.Float
}

func (e *ErrInsufficientBalance) Error() string {
	return "wallet balance " + e.Available.Text('f', 8) + " is below required " + e.Required.Text('f', 8)
}

// Client is the narrow wallet surface the checkout handler drives.
type Client interface {
	// FetchInvoice retrieves invoice details by the id extracted from the
	// edge server's transaction/link response via the "/i/([a-zA-Z0-9]+)"
	// pattern.
	FetchInvoice(ctx context.Context, invoiceID string) (Invoice, error)

	// CheckBalance returns the current available wallet balance.
	CheckBalance(ctx context.Context) (*big.Float, error)

	// SendMoney transfers amount to address, deduplicated by idempotencyKey.
	// Callers pass shopping_cart_gid as the idempotency key so retries after
	// a crash do not double-send.
	SendMoney(ctx context.Context, idempotencyKey, address string, amount *big.Float) error
}
