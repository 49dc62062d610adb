package enums

import "fmt"

// WalletTransactionType maps to the wallet_transaction_type enum in Postgres.
type WalletTransactionType string

const (
	WalletTransactionTypeDeposit WalletTransactionType = "deposit"
	WalletTransactionTypeDebit   WalletTransactionType = "debit"
	WalletTransactionTypeCredit  WalletTransactionType = "credit"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTransactionTypeDeposit,
	WalletTransactionTypeDebit,
	WalletTransactionTypeCredit,
}

// String implements fmt.Stringer.
func (w WalletTransactionType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTransactionType.
func (w WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletTransactionType converts raw input into a WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
