package model

import (
	"fmt"
)

// BankAccount is one linked aggregator account of a tenant.
type BankAccount struct {
	RequisitionID string   `json:"requisitionId"`
	AccountIDs    []string `json:"accountIds"`
	Name          string   `json:"name"`
	Logo          string   `json:"logo"`
}

// SyncConfig maps the system's logical fields onto the field identifiers of
// a tenant's workspace database. The identifier and status mappings are
// always required; every other mapping is optional, and a missing mapping
// means the field is not written at all.
//
// The config is created and edited by the tenant; the sync engine treats it
// as read-only.
type SyncConfig struct {
	// DatabaseID identifies the target workspace database.
	DatabaseID string `json:"id"`
	// IdentifierField holds the upstream identifier (record URL or
	// transaction id).
	IdentifierField string `json:"url"`
	// StatusField tracks sync state of a record.
	StatusField string `json:"status"`

	TitleField          string `json:"title,omitempty"`
	ReleaseDateField    string `json:"releaseDate,omitempty"`
	GenreField          string `json:"genre,omitempty"`
	DirectorField       string `json:"director,omitempty"`
	AuthorField         string `json:"author,omitempty"`
	RatingField         string `json:"rating,omitempty"`
	AmountField         string `json:"amount,omitempty"`
	AccountField        string `json:"account,omitempty"`
	BookingDateField    string `json:"bookingDate,omitempty"`
	ValueDateField      string `json:"valueDate,omitempty"`
	ClassificationField string `json:"classification,omitempty"`

	// Aggregator-only settings.
	SecretID            string               `json:"secretId,omitempty"`
	SecretKey           string               `json:"secretKey,omitempty"`
	BankAccounts        []BankAccount        `json:"bankAccounts,omitempty"`
	ClassificationRules []ClassificationRule `json:"classificationRules,omitempty"`
}

// Validate enforces the invariant that the identifier and status mappings
// are present.
func (c *SyncConfig) Validate() error {
	if c.DatabaseID == "" {
		return fmt.Errorf("database id is required")
	}
	if c.IdentifierField == "" {
		return fmt.Errorf("identifier field mapping is required")
	}
	if c.StatusField == "" {
		return fmt.Errorf("status field mapping is required")
	}
	return nil
}

// AccountIDs flattens the account ids of every linked bank account,
// preserving order.
func (c *SyncConfig) AccountIDs() []string {
	var ids []string
	for _, account := range c.BankAccounts {
		ids = append(ids, account.AccountIDs...)
	}
	return ids
}
