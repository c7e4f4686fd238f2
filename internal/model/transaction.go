package model

import (
	"strings"
	"time"
)

// Transaction represents a single bank transaction fetched from the
// aggregator. Two transactions with the same ID are the same economic event,
// even when they were fetched from different accounts or retries.
type Transaction struct {
	BookingDate           time.Time
	ValueDate             time.Time // zero when the source carries no value date
	ID                    string
	Currency              string
	Account               string // display name of the owning account
	CreditorName          string
	RemittanceInformation []string
	Amount                float64
}

// EffectiveValueDate returns the value date, falling back to the booking
// date when the source has none.
func (t *Transaction) EffectiveValueDate() time.Time {
	if t.ValueDate.IsZero() {
		return t.BookingDate
	}
	return t.ValueDate
}

// Title builds the human-readable record title from the creditor name and
// the unstructured remittance lines, comma-joined with empty parts skipped.
func (t *Transaction) Title() string {
	parts := make([]string, 0, len(t.RemittanceInformation)+1)
	if t.CreditorName != "" {
		parts = append(parts, t.CreditorName)
	}
	for _, line := range t.RemittanceInformation {
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

// DeduplicateTransactions removes duplicate transaction IDs, keeping the
// first occurrence in the order encountered.
func DeduplicateTransactions(transactions []Transaction) []Transaction {
	seen := make(map[string]struct{}, len(transactions))
	result := make([]Transaction, 0, len(transactions))

	for _, tx := range transactions {
		if _, ok := seen[tx.ID]; ok {
			continue
		}
		seen[tx.ID] = struct{}{}
		result = append(result, tx)
	}

	return result
}
