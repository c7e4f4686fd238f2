package gocardless

import (
	"context"

	"github.com/quillsync/quillsync/internal/model"
)

// AccountDetails is the metadata of one linked bank account.
type AccountDetails struct {
	ID   string
	Name string
}

// BankAPI is the aggregator's wire surface the reconciliation engine
// depends on. Split out so tests can substitute a fake.
type BankAPI interface {
	// Token exchanges the tenant's stored credentials for an access token.
	Token(ctx context.Context, secretID, secretKey string) (string, error)

	// AccountTransactions fetches the booked and pending transactions of
	// one account, booked first.
	AccountTransactions(ctx context.Context, token, accountID string) ([]model.Transaction, error)

	// AccountDetails fetches the account's display metadata.
	AccountDetails(ctx context.Context, token, accountID string) (AccountDetails, error)
}
