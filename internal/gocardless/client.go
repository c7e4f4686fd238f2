// Package gocardless provides the transaction-aggregator data provider and
// its reconciliation engine.
package gocardless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
)

const defaultBaseURL = "https://bankaccountdata.gocardless.com/api/v2"

// Client talks to the aggregator's bank-account-data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an aggregator API client. baseURL is overridable for
// tests; empty selects the hosted endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With("component", "gocardless"),
	}
}

type tokenResponse struct {
	Access string `json:"access"`
}

// Token exchanges the tenant's stored credentials for an access token.
func (c *Client) Token(ctx context.Context, secretID, secretKey string) (string, error) {
	body := map[string]string{
		"secret_id":  secretID,
		"secret_key": secretKey,
	}

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token/new/", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("%w: aggregator returned an empty access token", common.ErrUpstreamUnavailable)
	}
	return resp.Access, nil
}

// wireTransaction is the aggregator's transaction shape.
type wireTransaction struct {
	TransactionID         string `json:"transactionId"`
	InternalTransactionID string `json:"internalTransactionId"`
	BookingDate           string `json:"bookingDate"`
	ValueDate             string `json:"valueDate"`
	TransactionAmount     struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"transactionAmount"`
	CreditorName                           string   `json:"creditorName"`
	RemittanceInformationUnstructured      string   `json:"remittanceInformationUnstructured"`
	RemittanceInformationUnstructuredArray []string `json:"remittanceInformationUnstructuredArray"`
}

type transactionsResponse struct {
	Transactions struct {
		Booked  []wireTransaction `json:"booked"`
		Pending []wireTransaction `json:"pending"`
	} `json:"transactions"`
}

// AccountTransactions fetches booked and pending transactions of one
// account, booked first.
func (c *Client) AccountTransactions(ctx context.Context, token, accountID string) ([]model.Transaction, error) {
	path := fmt.Sprintf("/accounts/%s/transactions/", url.PathEscape(accountID))

	var resp transactionsResponse
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}

	raw := append(resp.Transactions.Booked, resp.Transactions.Pending...)
	transactions := make([]model.Transaction, 0, len(raw))
	for _, wt := range raw {
		transactions = append(transactions, c.mapTransaction(wt))
	}
	return transactions, nil
}

type detailsResponse struct {
	Account struct {
		ResourceID string `json:"resourceId"`
		Name       string `json:"name"`
		OwnerName  string `json:"ownerName"`
		Product    string `json:"product"`
	} `json:"account"`
}

// AccountDetails fetches the account's display metadata.
func (c *Client) AccountDetails(ctx context.Context, token, accountID string) (AccountDetails, error) {
	path := fmt.Sprintf("/accounts/%s/details/", url.PathEscape(accountID))

	var resp detailsResponse
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return AccountDetails{}, err
	}

	name := resp.Account.Name
	if name == "" {
		name = resp.Account.OwnerName
	}
	if name == "" {
		name = resp.Account.Product
	}
	return AccountDetails{ID: accountID, Name: name}, nil
}

// mapTransaction converts an aggregator transaction to the internal model.
func (c *Client) mapTransaction(wt wireTransaction) model.Transaction {
	id := wt.TransactionID
	if id == "" {
		id = wt.InternalTransactionID
	}

	amount, err := strconv.ParseFloat(wt.TransactionAmount.Amount, 64)
	if err != nil {
		c.logger.Warn("Failed to parse transaction amount",
			"transaction_id", id,
			"amount", wt.TransactionAmount.Amount)
	}

	remittance := wt.RemittanceInformationUnstructuredArray
	if len(remittance) == 0 && wt.RemittanceInformationUnstructured != "" {
		remittance = []string{wt.RemittanceInformationUnstructured}
	}

	return model.Transaction{
		ID:                    id,
		BookingDate:           parseDate(wt.BookingDate),
		ValueDate:             parseDate(wt.ValueDate),
		Amount:                amount,
		Currency:              wt.TransactionAmount.Currency,
		CreditorName:          wt.CreditorName,
		RemittanceInformation: remittance,
	}
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// do performs one JSON request against the aggregator API.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: aggregator returned %d: %s", common.ErrUpstreamUnavailable, resp.StatusCode, string(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ensure Client implements the aggregator wire surface.
var _ BankAPI = (*Client)(nil)
