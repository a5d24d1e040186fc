package model

import "errors"

// WalletEventDeposit is the only wallet event kind that triggers cashback.
const WalletEventDeposit = "deposit"

// DepositEvent is a validated wallet event emitted by the wallet ledger.
// Amount is in minor currency units.
type DepositEvent struct {
	TransactionID string `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

func (e DepositEvent) Validate() error {
	if e.TransactionID == "" {
		return errors.New("transaction_id is required")
	}
	if e.UserID == 0 {
		return errors.New("user_id is required")
	}
	return nil
}

// Creditable reports whether the event can produce cashback at all:
// it must be a deposit with a positive amount. Anything else is
// silently ignored by the engine.
func (e DepositEvent) Creditable() bool {
	return e.Type == WalletEventDeposit && e.Amount > 0
}
